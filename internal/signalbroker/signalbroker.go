// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker listens for OS termination signals so a build can be
// interrupted cleanly. The first signal cancels the build context, letting
// in-flight jobs unwind and mounted images be discarded; a repeated signal
// of the same type tells the watcher to stop waiting so the caller can
// terminate immediately.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/peforge/peforge/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New creates a buffered channel subscribed to the signals that should end a
// build. With no arguments it subscribes to the default termination set.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "subscribing to termination signals", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}
