// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"os/signal"

	"github.com/peforge/peforge/internal/ctxlog"
)

// Watch consumes the signal channel. The first signal of a type cancels the
// build context so stages and background jobs stop at the next checkpoint;
// a second signal of the same type closes the channel and returns, signalling
// that the operator wants out now.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for sig := range sigCh {
		if _, ok := seen[sig]; ok {
			ctxlog.Info(ctx, "repeated signal, giving up on graceful stop", "signal", sig.String())

			// The channel must be unregistered before it is closed or a
			// signal landing in between panics the dispatcher.
			signal.Stop(sigCh)
			close(sigCh)

			return
		}

		ctxlog.Info(ctx, "signal received, stopping build", "signal", sig.String())
		cancel()

		seen[sig] = struct{}{}
	}
}
