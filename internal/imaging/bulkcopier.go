// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package imaging

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/peforge/peforge/internal/ctxlog"
)

// bulkCopyFailureExitCode is the first exit code the external copy tool
// treats as failure. Codes 0-7 encode copy statistics, not errors.
const bulkCopyFailureExitCode = 8

// ErrBulkCopyFailed is returned when the external copy tool reports failure.
var ErrBulkCopyFailed = errors.New("bulk copy tool failed")

// lookPathFn resolves an executable on the search path. Package variable so
// tests can substitute a fake.
var lookPathFn = exec.LookPath

// BulkCopier invokes an external high-throughput copy utility (robocopy
// style). Availability is resolved once at construction, not probed per call
// site; an unavailable copier is represented by a nil *BulkCopier and callers
// fall back to the engine-level copy.
type BulkCopier struct {
	path string
}

// NewBulkCopier resolves the named copy tool on the search path. It returns
// (nil, nil) when the tool is not installed.
func NewBulkCopier(tool string) (*BulkCopier, error) {
	if tool == "" {
		return nil, nil
	}

	path, err := lookPathFn(tool)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("could not resolve bulk copy tool %q: %w", tool, err)
	}

	return &BulkCopier{path: path}, nil
}

// Available reports whether the external tool can be used.
func (b *BulkCopier) Available() bool {
	return b != nil && b.path != ""
}

// Copy mirrors src into dst with the external tool. Exit codes 0-7 are
// success, 8 and above are failure; this boundary convention belongs to the
// tool and must be preserved.
func (b *BulkCopier) Copy(ctx context.Context, src, dst string) error {
	ctxlog.Info(ctx, "bulk copying", "tool", b.path, "source", src, "destination", dst)

	cmd := exec.CommandContext(ctx, b.path, src, dst, "/E", "/R:2", "/W:1")

	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < bulkCopyFailureExitCode {
			ctxlog.Debug(ctx, "bulk copy tool finished", "exitCode", code)
			return nil
		}

		return fmt.Errorf("%w: exit code %d: %s", ErrBulkCopyFailed, code, string(out))
	}

	return fmt.Errorf("%w: %w", ErrBulkCopyFailed, err)
}
