// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package copyengine

// Status is the terminal or pending state of a single copy task.
type Status int

const (
	// StatusPending means the task has not yet been attempted.
	StatusPending Status = iota
	// StatusDone means the file was copied successfully.
	StatusDone
	// StatusFailed means the copy attempt failed.
	StatusFailed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusPending:
		return "pending"
	default:
		return "pending"
	}
}

// Task is one file transfer within a CopyMany call. Tasks are created per
// file per invocation and discarded when the call returns.
type Task struct {
	Source string // Absolute or engine-relative source path
	Dest   string // Destination path including file name
	Bytes  int64  // Expected size, informational
	Status Status
	Err    error
}
