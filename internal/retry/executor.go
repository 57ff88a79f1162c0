// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/ctxlog"
)

const source = "retry"

// sleepFn waits for the given duration or until the context is done.
// It is a package variable so tests can replace it.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor runs operations under a retry policy, recording terminal failures
// in the shared error collection.
type Executor struct {
	collector *builderr.Collector
}

// New creates an Executor appending terminal failures to the given collector.
func New(collector *builderr.Collector) *Executor {
	return &Executor{collector: collector}
}

// Do runs op up to policy.MaxAttempts times. Every failed attempt is logged
// as a warning. When all attempts fail, a BuildError with category
// OperationTimeout wrapping the last underlying error is appended to the
// collection and returned.
func Do[T any](ctx context.Context, ex *Executor, label string, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := policy.Validate(); err != nil {
		e := builderr.New(
			fmt.Sprintf("invalid retry policy for operation %q", label),
			builderr.CategoryConfiguration,
			source,
			builderr.WithCause(err),
		)
		ex.collector.Append(e)

		return zero, e
	}

	logger := ctxlog.Logger(ctx).With("operation", label)

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := sleepFn(ctx, policy.Delay(attempt)); err != nil {
			e := builderr.New(
				fmt.Sprintf("operation %q interrupted while waiting to retry", label),
				builderr.CategoryOperationTimeout,
				source,
				builderr.WithCause(err),
				builderr.WithData("attempts", attempt-1),
			)
			ex.collector.Append(e)

			return zero, e
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", "attempt", attempt)
			}

			return result, nil
		}

		lastErr = err

		logger.Warn("operation attempt failed",
			"attempt", attempt,
			"maxAttempts", policy.MaxAttempts,
			"error", err)
	}

	e := builderr.New(
		fmt.Sprintf("operation %q did not succeed after %d attempts", label, policy.MaxAttempts),
		builderr.CategoryOperationTimeout,
		source,
		builderr.WithCause(lastErr),
		builderr.WithData("attempts", policy.MaxAttempts),
	)
	ex.collector.Append(e)

	return zero, e
}
