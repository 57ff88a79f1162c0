// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package jobs coordinates background work units for the build pipeline.
// Two runtimes satisfy the same contract: a lightweight in-process runtime
// backed by goroutines and a heavier runtime that isolates each unit in a
// child process. Orchestrator logic is identical either way; the runtime is
// selected once at startup.
package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies the pipeline stage a job belongs to.
type Kind int

const (
	// KindMount mounts and prepares the boot image.
	KindMount Kind = iota
	// KindInject stages the runtime payload for injection.
	KindInject
	// KindPackage assembles the final media.
	KindPackage
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindMount:
		return "mount"
	case KindInject:
		return "inject"
	case KindPackage:
		return "package"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a job.
type State int

const (
	// StateQueued means the job has been submitted but not started.
	StateQueued State = iota
	// StateRunning means the job is executing.
	StateRunning
	// StateCompleted means the job finished successfully.
	StateCompleted
	// StateFailed means the job finished with an error.
	StateFailed
	// StateTimedOut means the wait budget elapsed before the job settled.
	StateTimedOut
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// terminal reports whether the state is final.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Outcome is the consumable result of a settled job.
type Outcome struct {
	Success bool
	Message string
}

// Job is one unit of background work. It is created on submission, mutated
// only by the runtime and the waiter, and discarded once its outcome has
// been consumed.
type Job struct {
	ID   uuid.UUID
	Kind Kind

	mu      sync.Mutex
	state   State
	message string
	err     error

	done   chan struct{}
	cancel context.CancelFunc
}

func newJob(kind Kind, cancel context.CancelFunc) *Job {
	return &Job{
		ID:     uuid.New(),
		Kind:   kind,
		state:  StateQueued,
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.state
}

// Err returns the job's error, if it failed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.err
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == StateQueued {
		j.state = StateRunning
	}
}

// settle moves the job to a terminal state. The first terminal transition
// wins; later attempts are ignored so a cancelled job that eventually
// finishes cannot overwrite its timed-out state.
func (j *Job) settle(state State, message string, err error) {
	j.mu.Lock()

	if j.state.terminal() {
		j.mu.Unlock()
		return
	}

	j.state = state
	j.message = message
	j.err = err
	j.mu.Unlock()

	close(j.done)
}

func (j *Job) outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()

	msg := j.message
	if j.err != nil {
		msg = j.err.Error()
	}

	return Outcome{
		Success: j.state == StateCompleted,
		Message: msg,
	}
}
