// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runtimepkg resolves the script runtime package to inject into the
// boot image. Packages live in a machine-wide cache shared by concurrent
// builds; cache misses are fetched over the network with retries.
package runtimepkg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter/v2"
	"github.com/spf13/afero"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/critsec"
	"github.com/peforge/peforge/internal/ctxlog"
	"github.com/peforge/peforge/internal/retry"
)

const source = "runtimepkg"

// cacheSection is the critical section name guarding the shared package
// cache across concurrent build invocations on one machine.
const cacheSection = "runtime-package-cache"

// Fetcher downloads a package from src to the dst path.
type Fetcher interface {
	Fetch(ctx context.Context, src, dst string) error
}

// GetterFetcher downloads with Hashicorp's go-getter, so the base URL may be
// any source the getter syntax supports (https, s3, git, local paths).
type GetterFetcher struct {
	client getter.Client
}

var _ Fetcher = (*GetterFetcher)(nil)

// NewGetterFetcher creates a GetterFetcher.
func NewGetterFetcher() *GetterFetcher {
	return &GetterFetcher{
		client: getter.Client{DisableSymlinks: true},
	}
}

// Fetch implements Fetcher.
func (g *GetterFetcher) Fetch(ctx context.Context, src, dst string) error {
	req := &getter.Request{
		Src:     src,
		Dst:     dst,
		GetMode: getter.ModeFile,
	}

	if _, err := g.client.Get(ctx, req); err != nil {
		return fmt.Errorf("get %s: %w", src, err)
	}

	return nil
}

// Resolver locates runtime packages, preferring the local cache and falling
// back to a network fetch. All fields are fixed at construction.
type Resolver struct {
	// FS is used for cache existence checks.
	FS afero.Fs
	// CacheDir is the shared package cache directory.
	CacheDir string
	// BaseURL is the package source prefix in go-getter syntax.
	BaseURL string
	// Fetcher performs the network download.
	Fetcher Fetcher
	// Retry is the policy applied to fetch attempts.
	Retry retry.Policy
	// Executor runs the fetch under the retry policy.
	Executor *retry.Executor
	// Locks provides the named lock guarding the cache.
	Locks critsec.Provider
	// LockTimeout bounds the wait for the cache lock.
	LockTimeout time.Duration

	collector *builderr.Collector
}

// New creates a Resolver.
func New(fs afero.Fs, cacheDir, baseURL string, fetcher Fetcher, ex *retry.Executor, locks critsec.Provider, collector *builderr.Collector) *Resolver {
	return &Resolver{
		FS:          fs,
		CacheDir:    cacheDir,
		BaseURL:     baseURL,
		Fetcher:     fetcher,
		Retry:       retry.DefaultPolicy(),
		Executor:    ex,
		Locks:       locks,
		LockTimeout: time.Minute,
		collector:   collector,
	}
}

// PackageFileName returns the archive name for a runtime version.
func PackageFileName(version string) string {
	return fmt.Sprintf("runtime-%s.zip", version)
}

// Resolve returns the local path of the package for the requested version,
// fetching it into the cache first if necessary. The cache is read and
// written under a named critical section so concurrent builds on the same
// machine cannot corrupt it.
func (r *Resolver) Resolve(ctx context.Context, version string) (string, error) {
	cached := filepath.Join(r.CacheDir, PackageFileName(version))

	handle, err := critsec.Enter(ctx, r.Locks, cacheSection, r.LockTimeout)
	if err != nil {
		var be *builderr.BuildError
		if errors.As(err, &be) {
			r.collector.Append(be)
		}

		return "", err
	}

	defer critsec.Exit(ctx, handle)

	exists, err := afero.Exists(r.FS, cached)
	if err != nil {
		be := builderr.New("could not probe runtime package cache", builderr.CategoryFileSystem, source,
			builderr.WithCause(err),
			builderr.WithData("path", cached))
		r.collector.Append(be)

		return "", be
	}

	if exists {
		ctxlog.Info(ctx, "runtime package cache hit", "version", version, "path", cached)
		return cached, nil
	}

	src := r.BaseURL + "/" + PackageFileName(version)

	ctxlog.Info(ctx, "fetching runtime package", "version", version, "source", src)

	if err := r.FS.MkdirAll(r.CacheDir, 0o755); err != nil {
		be := builderr.New("could not create runtime package cache", builderr.CategoryFileSystem, source,
			builderr.WithCause(err),
			builderr.WithData("path", r.CacheDir))
		r.collector.Append(be)

		return "", be
	}

	_, err = retry.Do(ctx, r.Executor, "fetch runtime package", r.Retry,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.Fetcher.Fetch(ctx, src, cached)
		})
	if err != nil {
		be := builderr.New(
			fmt.Sprintf("could not fetch runtime package %s", version),
			builderr.CategoryNetwork,
			source,
			builderr.WithCause(err),
			builderr.WithData("source", src))
		r.collector.Append(be)

		return "", be
	}

	return cached, nil
}
