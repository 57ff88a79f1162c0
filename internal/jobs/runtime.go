// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/peforge/peforge/internal/ctxlog"
)

var (
	// ErrNoWork is returned when a unit carries nothing the runtime can run.
	ErrNoWork = errors.New("work unit has no runnable payload")
	// ErrTimedOut marks a job cancelled because the wait budget elapsed.
	ErrTimedOut = errors.New("background job timed out")
)

// Unit is a submittable piece of background work. Func drives the in-process
// runtime; Command drives the process-isolated runtime. A unit may carry
// both, letting one definition run under either runtime.
type Unit struct {
	Name    string
	Kind    Kind
	Func    func(ctx context.Context) (string, error)
	Command *Command
}

// Command describes a child process for the process-isolated runtime.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Runtime submits work units and waits for their completion.
type Runtime interface {
	// Submit starts the unit in the background and returns its job handle.
	Submit(ctx context.Context, unit Unit) (*Job, error)
	// Wait blocks until every job settles or the timeout elapses. It
	// returns false on timeout; in that case in-flight jobs are cancelled
	// and marked timed out. A timeout of zero or less never succeeds.
	Wait(ctx context.Context, jobList []*Job, timeout time.Duration) bool
	// Outcome returns the consumable result of a settled job.
	Outcome(job *Job) Outcome
}

// waitAll implements the Wait contract shared by both runtimes.
func waitAll(ctx context.Context, jobList []*Job, timeout time.Duration) bool {
	if timeout <= 0 {
		cancelRemaining(ctx, jobList)
		return false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, j := range jobList {
		select {
		case <-j.Done():
		case <-deadline.C:
			cancelRemaining(ctx, jobList)
			return false
		case <-ctx.Done():
			cancelRemaining(ctx, jobList)
			return false
		}
	}

	return true
}

// cancelRemaining propagates cancellation to every unsettled job so that
// orphaned work does not keep resources (such as mount handles) open, then
// marks them timed out.
func cancelRemaining(ctx context.Context, jobList []*Job) {
	for _, j := range jobList {
		if j.State().terminal() {
			continue
		}

		ctxlog.Warn(ctx, "cancelling unsettled background job",
			"jobId", j.ID.String(),
			"kind", j.Kind.String())

		if j.cancel != nil {
			j.cancel()
		}

		j.settle(StateTimedOut, "", ErrTimedOut)
	}
}
