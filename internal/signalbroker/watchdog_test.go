// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/peforge/peforge/internal/ctxlog"
)

func TestWatchFirstSignalCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	sigCh := make(chan os.Signal, 1)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
		// build context cancelled, graceful stop underway
	case <-time.After(time.Second):
		t.Fatal("context should be cancelled after first signal")
	}

	close(sigCh)
	wg.Wait()
}

func TestWatchRepeatedSignalStopsWatching(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	sigCh := make(chan os.Signal, 2)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	wg.Wait()

	// Watch closed the channel on the repeated signal.
	_, ok := <-sigCh
	assert.False(t, ok)
	assert.Error(t, ctx.Err())
}

func TestWatchDistinctSignalsKeepWatching(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	sigCh := make(chan os.Signal, 2)

	done := make(chan struct{})

	go func() {
		defer close(done)
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Kill

	select {
	case <-done:
		t.Fatal("watcher should still be running after distinct signals")
	case <-time.After(50 * time.Millisecond):
	}

	close(sigCh)
	<-done
}
