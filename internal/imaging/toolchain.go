// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package imaging wraps the external imaging toolchain behind narrow
// interfaces. The calls are opaque, possibly slow and possibly failing; the
// orchestrator decides retries and error policy, not this package.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/peforge/peforge/internal/ctxlog"
)

var (
	// ErrToolFailed is returned when an imaging tool exits non-zero.
	ErrToolFailed = errors.New("imaging tool failed")
	// ErrNotMounted is returned when dismounting a handle that is not mounted.
	ErrNotMounted = errors.New("image is not mounted")
)

// Handle identifies a mounted image.
type Handle struct {
	ImagePath string
	MountDir  string
}

// ISOOptions tunes installable media creation.
type ISOOptions struct {
	VolumeLabel             string
	BootFile                string
	IncludeExtendedRecovery bool
}

// Toolchain is the image manipulation collaborator.
type Toolchain interface {
	// Mount mounts the image at imagePath onto mountDir.
	Mount(ctx context.Context, imagePath, mountDir string) (*Handle, error)
	// Dismount unmounts the handle, committing or discarding changes.
	Dismount(ctx context.Context, h *Handle, commit bool) error
	// CreateISO assembles the workspace into an installable image and
	// returns the artifact path.
	CreateISO(ctx context.Context, workspace, outputPath string, opts ISOOptions) (string, error)
}

// runCommandFn executes an external tool and returns its combined output.
// Package variable so tests can substitute a fake.
var runCommandFn = func(ctx context.Context, path string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()

	return strings.TrimSpace(string(out)), err
}

// ExecToolchain shells out to the platform imaging tools (DISM-style image
// servicing plus an ISO assembler).
type ExecToolchain struct {
	// ImageTool is the image servicing executable (e.g. dism).
	ImageTool string
	// ISOTool is the media assembly executable (e.g. oscdimg).
	ISOTool string
}

var _ Toolchain = (*ExecToolchain)(nil)

// Mount implements Toolchain.
func (t *ExecToolchain) Mount(ctx context.Context, imagePath, mountDir string) (*Handle, error) {
	ctxlog.Info(ctx, "mounting image", "image", imagePath, "mountDir", mountDir)

	out, err := runCommandFn(ctx, t.ImageTool,
		"/Mount-Image",
		"/ImageFile:"+imagePath,
		"/Index:1",
		"/MountDir:"+mountDir,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: mount %s: %s: %w", ErrToolFailed, imagePath, out, err)
	}

	return &Handle{ImagePath: imagePath, MountDir: mountDir}, nil
}

// Dismount implements Toolchain.
func (t *ExecToolchain) Dismount(ctx context.Context, h *Handle, commit bool) error {
	if h == nil {
		return ErrNotMounted
	}

	mode := "/Discard"
	if commit {
		mode = "/Commit"
	}

	ctxlog.Info(ctx, "dismounting image", "mountDir", h.MountDir, "commit", commit)

	out, err := runCommandFn(ctx, t.ImageTool,
		"/Unmount-Image",
		"/MountDir:"+h.MountDir,
		mode,
	)
	if err != nil {
		return fmt.Errorf("%w: dismount %s: %s: %w", ErrToolFailed, h.MountDir, out, err)
	}

	return nil
}

// CreateISO implements Toolchain.
func (t *ExecToolchain) CreateISO(ctx context.Context, workspace, outputPath string, opts ISOOptions) (string, error) {
	args := make([]string, 0, 6)

	if opts.VolumeLabel != "" {
		args = append(args, "-l"+opts.VolumeLabel)
	}

	if opts.BootFile != "" {
		args = append(args, "-b"+opts.BootFile)
	}

	args = append(args, "-u2", "-udfver102", workspace, outputPath)

	ctxlog.Info(ctx, "creating installable image", "workspace", workspace, "output", outputPath)

	out, err := runCommandFn(ctx, t.ISOTool, args...)
	if err != nil {
		return "", fmt.Errorf("%w: create iso: %s: %w", ErrToolFailed, out, err)
	}

	return outputPath, nil
}
