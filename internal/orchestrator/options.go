// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import "time"

// DefaultJobTimeout is the overall wall-clock budget for the transforming
// stage's background jobs.
const DefaultJobTimeout = 15 * time.Minute

// DefaultMinFreeDiskBytes is the free space required at the work path before
// a build mutates anything.
const DefaultMinFreeDiskBytes = 10 << 30 // 10 GiB

// DefaultThrottleLimit bounds concurrent copy operations in bulk transfers.
const DefaultThrottleLimit = 8

// Options configures one build invocation. The value is immutable once the
// Orchestrator is constructed; changing an option means a new value and a new
// build, never in-place mutation.
type Options struct {
	// ImagePath is the base boot image to customize.
	ImagePath string
	// OutputPath is where the installable media is written.
	OutputPath string
	// WorkPath is the directory holding the scratch workspace.
	WorkPath string
	// RuntimeVersion is the script runtime to inject, strict
	// major.minor.patch.
	RuntimeVersion string
	// DriverPaths are driver directories staged into the image.
	DriverPaths []string
	// BrandingPaths are branding assets staged into the media.
	BrandingPaths []string
	// IncludeExtendedRecovery adds the extended recovery payload.
	IncludeExtendedRecovery bool
	// SkipCleanup leaves the scratch workspace in place after the build.
	SkipCleanup bool
	// DryRun stops after the precondition checks and reports the plan.
	DryRun bool
	// ContinueOnError downgrades non-fatal stage failures to
	// suppressed-and-collected.
	ContinueOnError bool
	// JobTimeout bounds the transforming stage's background jobs. The
	// value is used as given: zero or negative grants the jobs no time at
	// all and the transforming stage fails. The CLI applies
	// DefaultJobTimeout when nothing configures one.
	JobTimeout time.Duration
	// MinFreeDiskBytes is the required free space at WorkPath. Zero means
	// DefaultMinFreeDiskBytes.
	MinFreeDiskBytes uint64
	// ThrottleLimit bounds concurrent copies. Zero means
	// DefaultThrottleLimit.
	ThrottleLimit int
	// VolumeLabel is the media volume label.
	VolumeLabel string
}

// withDefaults returns a copy with zero-valued tuning fields replaced by
// defaults. JobTimeout is deliberately left as given: an explicit zero must
// reach the job wait, where it never succeeds.
func (o Options) withDefaults() Options {
	if o.MinFreeDiskBytes == 0 {
		o.MinFreeDiskBytes = DefaultMinFreeDiskBytes
	}

	if o.ThrottleLimit == 0 {
		o.ThrottleLimit = DefaultThrottleLimit
	}

	if o.VolumeLabel == "" {
		o.VolumeLabel = "PEFORGE"
	}

	return o
}

// Report summarizes a finished build invocation.
type Report struct {
	// State is the terminal state of the build.
	State State
	// ArtifactPath is the installable media path on success.
	ArtifactPath string
	// Planned lists the actions a dry run would have performed.
	Planned []string
}
