// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package runtimepkg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/critsec"
	"github.com/peforge/peforge/internal/retry"
)

type fakeFetcher struct {
	fs       afero.Fs
	payload  []byte
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, dst string) error {
	f.calls++

	if f.calls <= f.failures {
		return errors.New("connection reset")
	}

	return afero.WriteFile(f.fs, dst, f.payload, 0o644)
}

func newTestResolver(fs afero.Fs, fetcher Fetcher, collector *builderr.Collector) *Resolver {
	r := New(fs, "/cache", "https://packages.example.com/pwsh", fetcher, retry.New(collector), critsec.NewMemProvider(), collector)
	r.Retry = retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
	r.LockTimeout = time.Second

	return r
}

func TestResolveCacheHitSkipsFetch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/runtime-7.4.1.zip", []byte("cached"), 0o644))

	fetcher := &fakeFetcher{fs: fs}
	r := newTestResolver(fs, fetcher, builderr.NewCollector(0))

	path, err := r.Resolve(context.Background(), "7.4.1")
	require.NoError(t, err)
	assert.Equal(t, "/cache/runtime-7.4.1.zip", path)
	assert.Zero(t, fetcher.calls, "cache hits must not invoke the fetcher")
}

func TestResolveFetchesOnMiss(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &fakeFetcher{fs: fs, payload: []byte("pkg")}
	r := newTestResolver(fs, fetcher, builderr.NewCollector(0))

	path, err := r.Resolve(context.Background(), "7.4.1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "pkg", string(data))
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &fakeFetcher{fs: fs, payload: []byte("pkg"), failures: 2}
	r := newTestResolver(fs, fetcher, builderr.NewCollector(0))

	_, err := r.Resolve(context.Background(), "7.4.1")
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls)
}

func TestResolveExhaustedFetchIsNetworkError(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &fakeFetcher{fs: fs, failures: 99}
	collector := builderr.NewCollector(0)
	r := newTestResolver(fs, fetcher, collector)

	_, err := r.Resolve(context.Background(), "7.4.1")
	require.Error(t, err)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryNetwork, be.Category)
	assert.Equal(t, 3, fetcher.calls)

	// Both the retry exhaustion and the resolver failure are collected.
	collected := collector.Drain(true)
	require.Len(t, collected, 2)
	assert.Equal(t, builderr.CategoryOperationTimeout, collected[0].Category)
	assert.Equal(t, builderr.CategoryNetwork, collected[1].Category)
}

func TestResolveLockContention(t *testing.T) {
	fs := afero.NewMemMapFs()
	collector := builderr.NewCollector(0)
	r := newTestResolver(fs, &fakeFetcher{fs: fs, payload: []byte("pkg")}, collector)
	r.LockTimeout = 20 * time.Millisecond

	// Hold the cache section so Resolve times out waiting.
	ctx := context.Background()
	h, err := critsec.Enter(ctx, r.Locks, "runtime-package-cache", time.Second)
	require.NoError(t, err)

	defer critsec.Exit(ctx, h)

	_, err = r.Resolve(ctx, "7.4.1")

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryConcurrency, be.Category)
}
