// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/peforge/peforge/internal/ctxlog"
)

// GoroutineRuntime runs work units on goroutines within the current process.
// It is the lightweight runtime and the default.
type GoroutineRuntime struct{}

var _ Runtime = (*GoroutineRuntime)(nil)

// NewGoroutineRuntime creates the in-process runtime.
func NewGoroutineRuntime() *GoroutineRuntime {
	return &GoroutineRuntime{}
}

// Submit implements Runtime.
func (r *GoroutineRuntime) Submit(ctx context.Context, unit Unit) (*Job, error) {
	if unit.Func == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoWork, unit.Name)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := newJob(unit.Kind, cancel)

	logger := ctxlog.Logger(ctx).With(
		"jobId", j.ID.String(),
		"kind", unit.Kind.String(),
		"unit", unit.Name,
		"runtime", "goroutine")

	go func() {
		defer cancel()

		// A panicking unit settles the job as failed instead of
		// crashing the orchestrator.
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("background job panicked", "panic", rec)
				j.settle(StateFailed, "", fmt.Errorf("job %q panicked: %v", unit.Name, rec))
			}
		}()

		j.start()
		logger.Debug("background job started")

		msg, err := unit.Func(jobCtx)
		if err != nil {
			logger.Warn("background job failed", "error", err)
			j.settle(StateFailed, msg, err)

			return
		}

		logger.Debug("background job completed")
		j.settle(StateCompleted, msg, nil)
	}()

	return j, nil
}

// Wait implements Runtime.
func (r *GoroutineRuntime) Wait(ctx context.Context, jobList []*Job, timeout time.Duration) bool {
	return waitAll(ctx, jobList, timeout)
}

// Outcome implements Runtime.
func (r *GoroutineRuntime) Outcome(job *Job) Outcome {
	return job.outcome()
}
