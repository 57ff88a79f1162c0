// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

// State is the phase a build invocation is in. Terminal states are
// StateSucceeded and StateFailed.
type State int

const (
	// StateValidating checks inputs and the execution context.
	StateValidating State = iota
	// StateResourceChecking verifies disk space before any mutation.
	StateResourceChecking
	// StateStaging copies the source image into the scratch workspace.
	StateStaging
	// StateTransforming runs the parallel mount and payload jobs.
	StateTransforming
	// StatePackaging assembles the installable media.
	StatePackaging
	// StateFinalizing removes the scratch workspace.
	StateFinalizing
	// StateSucceeded is the successful terminal state.
	StateSucceeded
	// StateFailed is the failing terminal state.
	StateFailed
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateResourceChecking:
		return "resource-checking"
	case StateStaging:
		return "staging"
	case StateTransforming:
		return "transforming"
	case StatePackaging:
		return "packaging"
	case StateFinalizing:
		return "finalizing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
