// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main is the entry point for the peforge command-line application.
package main

import (
	"context"
	"os"

	"github.com/peforge/peforge/cmd"
	"github.com/peforge/peforge/internal/ctxlog"
	"github.com/peforge/peforge/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	if err := cmd.RootCmd.Run(ctx, os.Args); err != nil {
		ctxlog.Logger(ctx).Error("command failed", "error", err)
		os.Exit(1)
	}

	os.Exit(0)
}
