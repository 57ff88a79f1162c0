// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/ctxlog"
)

// SupportedRuntimeSeries lists the major.minor runtime lines a build may
// inject. Patch levels within a listed series are accepted.
var SupportedRuntimeSeries = []string{"7.2", "7.4", "7.5"}

// runtimeVersionPattern is the strict major.minor.patch form; no prefixes,
// no pre-release tags, no silent coercion.
var runtimeVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// isElevatedFn reports whether the process runs with administrative rights.
// Package variable so tests can substitute a fake.
var isElevatedFn = func() bool {
	return os.Geteuid() == 0
}

// diskFreeFn returns the free bytes at the given path. Package variable so
// tests can substitute a fake.
var diskFreeFn = func(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}

	return usage.Free, nil
}

// validateRuntimeVersion checks the strict version format and the supported
// series allow-list.
func validateRuntimeVersion(version string) error {
	m := runtimeVersionPattern.FindStringSubmatch(version)
	if m == nil {
		return fmt.Errorf("runtime version %q is not a strict major.minor.patch version", version)
	}

	series := m[1] + "." + m[2]
	if !slices.Contains(SupportedRuntimeSeries, series) {
		return fmt.Errorf("runtime series %s is not supported (supported: %s)",
			series, strings.Join(SupportedRuntimeSeries, ", "))
	}

	return nil
}

// validate is the Validating stage: the source image must exist, be a
// regular non-empty file, the process must be elevated and the runtime
// version must pass the allow-list. Stage failures here always terminate;
// no mutation has happened yet and none may happen on a failed precondition.
func (o *Orchestrator) validate(ctx context.Context) error {
	ctxlog.Info(ctx, "validating build inputs", "image", o.opts.ImagePath, "runtimeVersion", o.opts.RuntimeVersion)

	info, err := o.fs.Stat(o.opts.ImagePath)
	if err != nil {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			fmt.Sprintf("source image %q does not exist", o.opts.ImagePath),
			builderr.CategoryValidation, source,
			builderr.WithCause(err)))
	}

	if info.IsDir() {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			fmt.Sprintf("source image %q is not a regular file", o.opts.ImagePath),
			builderr.CategoryValidation, source))
	}

	if info.Size() == 0 {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			fmt.Sprintf("source image %q is empty", o.opts.ImagePath),
			builderr.CategoryValidation, source))
	}

	if o.opts.OutputPath == "" {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			"output path must not be empty",
			builderr.CategoryValidation, source))
	}

	if o.opts.WorkPath == "" {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			"work path must not be empty",
			builderr.CategoryValidation, source))
	}

	if !isElevatedFn() {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			"building deployment media requires an elevated execution context",
			builderr.CategoryValidation, source))
	}

	if err := validateRuntimeVersion(o.opts.RuntimeVersion); err != nil {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			err.Error(),
			builderr.CategoryValidation, source,
			builderr.WithData("runtimeVersion", o.opts.RuntimeVersion)))
	}

	return nil
}

// resourceCheck is the ResourceChecking stage: free disk space at the work
// path must meet the configured minimum. Exactly the minimum passes; one
// byte less fails. Like validate, failures terminate unconditionally.
func (o *Orchestrator) resourceCheck(ctx context.Context) error {
	free, err := diskFreeFn(o.opts.WorkPath)
	if err != nil {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			fmt.Sprintf("could not determine free space at %q", o.opts.WorkPath),
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)))
	}

	if free < o.opts.MinFreeDiskBytes {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			fmt.Sprintf("insufficient free space at %q: %d bytes free, %d required",
				o.opts.WorkPath, free, o.opts.MinFreeDiskBytes),
			builderr.CategoryFileSystem, source,
			builderr.WithData("freeBytes", free),
			builderr.WithData("requiredBytes", o.opts.MinFreeDiskBytes)))
	}

	ctxlog.Debug(ctx, "resource check passed", "freeBytes", free, "requiredBytes", o.opts.MinFreeDiskBytes)

	return nil
}
