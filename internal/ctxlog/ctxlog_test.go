// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	lv := &slog.LevelVar{}
	lv.Set(slog.LevelDebug)

	return slog.New(NewPretty(&slog.HandlerOptions{Level: lv}, WithDestinationWriter(buf)))
}

func TestLoggerRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferLogger(buf)

	ctx := New(context.Background(), logger)
	require.Same(t, logger, Logger(ctx))

	Info(ctx, "hello", "component", "test")

	out := buf.String()
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "component=test")
}

func TestLoggerFallsBackToDefault(t *testing.T) {
	assert.Same(t, DefaultLogger, Logger(context.Background()))
	assert.Same(t, DefaultLogger, Logger(New(context.Background(), nil)))
}

func TestPrettyHandlerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	lv := &slog.LevelVar{}
	lv.Set(slog.LevelWarn)

	logger := slog.New(NewPretty(&slog.HandlerOptions{Level: lv}, WithDestinationWriter(buf)))
	ctx := New(context.Background(), logger)

	Debug(ctx, "too quiet")
	Warn(ctx, "loud enough")

	out := buf.String()
	assert.NotContains(t, out, "too quiet")
	assert.Contains(t, out, "loud enough")
}

func TestPrettyHandlerWithAttrsAndGroups(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferLogger(buf).With("source", "copyengine").WithGroup("job")

	logger.Error("copy failed", "id", "42")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "source=copyengine")
	assert.Contains(t, line, "job.id=42")
}
