// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package critsec serializes access to shared resources across concurrent
// build invocations via named critical sections. The lock itself is an
// interface so that a machine-wide file lock and an in-process lock satisfy
// the same contract; which one backs a section is decided once at startup.
package critsec

import (
	"context"
	"fmt"
	"time"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/ctxlog"
)

const source = "critsec"

// Locker is a named exclusive lock. Acquire blocks until the lock is held or
// the timeout elapses; it returns false (and no error) on timeout. Release
// gives the lock up; Close disposes the underlying primitive.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) (bool, error)
	Release() error
	Close() error
}

// Provider constructs Lockers by section name. Implementations are selected
// once at startup, not probed per call site.
type Provider interface {
	NewLocker(name string) (Locker, error)
}

// Handle represents an acquired critical section. It is owned exclusively by
// the caller that entered the section and must be passed to Exit on every
// return path.
type Handle struct {
	Name string

	locker   Locker
	acquired bool
}

// Enter acquires the named critical section, blocking until it is held or
// the timeout elapses. Failure to create or acquire the lock yields a
// BuildError with category Concurrency; the underlying primitive is never
// leaked on failure.
func Enter(ctx context.Context, provider Provider, name string, timeout time.Duration) (*Handle, error) {
	locker, err := provider.NewLocker(name)
	if err != nil {
		return nil, builderr.New(
			fmt.Sprintf("could not create lock for critical section %q", name),
			builderr.CategoryConcurrency,
			source,
			builderr.WithCause(err),
		)
	}

	ctxlog.Debug(ctx, "entering critical section", "section", name, "timeout", timeout)

	start := time.Now()

	ok, err := locker.Acquire(ctx, timeout)
	if err != nil {
		closeQuietly(ctx, name, locker)

		return nil, builderr.New(
			fmt.Sprintf("could not acquire critical section %q", name),
			builderr.CategoryConcurrency,
			source,
			builderr.WithCause(err),
		)
	}

	if !ok {
		elapsed := time.Since(start)
		closeQuietly(ctx, name, locker)

		return nil, builderr.New(
			fmt.Sprintf("timed out after %s waiting for critical section %q", elapsed.Round(time.Millisecond), name),
			builderr.CategoryConcurrency,
			source,
			builderr.WithData("waited", elapsed.String()),
		)
	}

	ctxlog.Debug(ctx, "entered critical section", "section", name, "waited", time.Since(start))

	return &Handle{Name: name, locker: locker, acquired: true}, nil
}

// Exit releases and disposes the critical section. It never fails and never
// panics: release failures are logged as warnings so they cannot mask the
// caller's own success or failure path. Exit(nil) is a no-op, supporting call
// sites that conditionally acquired.
func Exit(ctx context.Context, h *Handle) {
	if h == nil || !h.acquired {
		return
	}

	h.acquired = false

	// Close runs from its own deferred frame so a panicking Release cannot
	// skip it and leak the primitive. The outermost recover absorbs a
	// panicking Close.
	defer func() {
		if r := recover(); r != nil {
			ctxlog.Warn(ctx, "panic while closing critical section lock", "section", h.Name, "panic", r)
		}
	}()
	defer func() {
		if err := h.locker.Close(); err != nil {
			ctxlog.Warn(ctx, "could not close critical section lock", "section", h.Name, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			ctxlog.Warn(ctx, "panic while releasing critical section", "section", h.Name, "panic", r)
		}
	}()

	if err := h.locker.Release(); err != nil {
		ctxlog.Warn(ctx, "could not release critical section", "section", h.Name, "error", err)
	}
}

func closeQuietly(ctx context.Context, name string, locker Locker) {
	if err := locker.Close(); err != nil {
		ctxlog.Warn(ctx, "could not close critical section lock", "section", name, "error", err)
	}
}
