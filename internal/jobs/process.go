// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/peforge/peforge/internal/ctxlog"
)

// ProcessRuntime runs each work unit in a child process. It is the heavier,
// isolated runtime: a crashing unit cannot take the orchestrator down with
// it. Units submitted here must carry a Command.
type ProcessRuntime struct{}

var _ Runtime = (*ProcessRuntime)(nil)

// NewProcessRuntime creates the process-isolated runtime.
func NewProcessRuntime() *ProcessRuntime {
	return &ProcessRuntime{}
}

// Submit implements Runtime. The unit's command is started immediately; exit
// code 0 settles the job as completed, anything else as failed.
func (r *ProcessRuntime) Submit(ctx context.Context, unit Unit) (*Job, error) {
	if unit.Command == nil {
		return nil, fmt.Errorf("%w: %q has no command", ErrNoWork, unit.Name)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := newJob(unit.Kind, cancel)

	logger := ctxlog.Logger(ctx).With(
		"jobId", j.ID.String(),
		"kind", unit.Kind.String(),
		"unit", unit.Name,
		"runtime", "process")

	cmd := exec.CommandContext(jobCtx, unit.Command.Path, unit.Command.Args...)
	cmd.Dir = unit.Command.Dir

	go func() {
		defer cancel()

		j.start()
		logger.Debug("background job process starting", "path", unit.Command.Path)

		out, err := cmd.CombinedOutput()
		msg := strings.TrimSpace(string(out))

		if err != nil {
			logger.Warn("background job process failed", "error", err)
			j.settle(StateFailed, msg, fmt.Errorf("job %q: %w", unit.Name, err))

			return
		}

		logger.Debug("background job process completed")
		j.settle(StateCompleted, msg, nil)
	}()

	return j, nil
}

// Wait implements Runtime.
func (r *ProcessRuntime) Wait(ctx context.Context, jobList []*Job, timeout time.Duration) bool {
	return waitAll(ctx, jobList, timeout)
}

// Outcome implements Runtime.
func (r *ProcessRuntime) Outcome(job *Job) Outcome {
	return job.outcome()
}
