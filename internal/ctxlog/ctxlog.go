// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-based logger for structured logging with
// the slog package. Components receive the logger through their context and
// never format output themselves; attaching attributes is all they do.
// The log level is read from the PEFORGE_LOG_LEVEL environment variable and
// can be one of "DEBUG", "INFO", "WARN" or "ERROR". Any other value defaults
// to "WARN".
package ctxlog

import (
	"context"
	"log/slog"
	"os"
)

type loggerKey struct{}

// LevelVar holds the process-wide log level. It is shared by both handlers so
// that flipping it affects all loggers already handed out.
var LevelVar = &slog.LevelVar{}

// DefaultLogger is a human-readable text logger used when no logger is
// provided in the context.
var DefaultLogger = slog.New(NewPretty(&slog.HandlerOptions{
	Level: LevelVar,
},
	WithDestinationWriter(os.Stdout),
	WithColor(),
))

// JSONLogger emits one JSON object per record, for machine consumption.
var JSONLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: LevelVar,
}))

const levelEnvVar = "PEFORGE_LOG_LEVEL"

func init() {
	LevelVar.Set(levelFromEnv())
}

// New returns a context carrying the given logger. A nil logger means the
// default logger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}

	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger from the context, or the default logger if the
// context does not carry one.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}

	return logger
}

// Info logs an info message with the logger from the given context.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs a debug message with the logger from the given context.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Warn logs a warning message with the logger from the given context.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs an error message with the logger from the given context.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

func levelFromEnv() slog.Level {
	switch os.Getenv(levelEnvVar) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
