// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package orchestrator drives a build invocation through its pipeline:
// Validating, ResourceChecking, Staging, Transforming (parallel background
// jobs), Packaging and Finalizing. Stages happen in causal order; only the
// transforming stage fans out concurrent work.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/copyengine"
	"github.com/peforge/peforge/internal/ctxlog"
	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/jobs"
	"github.com/peforge/peforge/internal/retry"
)

const source = "orchestrator"

// workspaceDirName is the scratch directory created beneath the work path.
const workspaceDirName = "peforge-workspace"

// PackageResolver locates the runtime package for a version.
type PackageResolver interface {
	Resolve(ctx context.Context, version string) (string, error)
}

// BulkCopier shells out to an external bulk copy tool. Available reports
// whether the tool was found at startup; Copy is never called when it was
// not.
type BulkCopier interface {
	Available() bool
	Copy(ctx context.Context, src, dst string) error
}

// Orchestrator coordinates one build invocation. All collaborators are fixed
// at construction.
type Orchestrator struct {
	opts Options

	fs        afero.Fs
	raiser    *builderr.Raiser
	retryExec *retry.Executor
	engine    *copyengine.Engine
	toolchain imaging.Toolchain
	bulk      BulkCopier
	runtime   jobs.Runtime
	resolver  PackageResolver
}

// New creates an Orchestrator. The bulk copier may be nil, in which case all
// staging copies go through the engine.
func New(
	opts Options,
	fs afero.Fs,
	raiser *builderr.Raiser,
	retryExec *retry.Executor,
	engine *copyengine.Engine,
	toolchain imaging.Toolchain,
	bulk BulkCopier,
	runtime jobs.Runtime,
	resolver PackageResolver,
) *Orchestrator {
	return &Orchestrator{
		opts:      opts.withDefaults(),
		fs:        fs,
		raiser:    raiser,
		retryExec: retryExec,
		engine:    engine,
		toolchain: toolchain,
		bulk:      bulk,
		runtime:   runtime,
		resolver:  resolver,
	}
}

// Errors exposes the error collection gathered during the build.
func (o *Orchestrator) Errors(clear bool) []*builderr.BuildError {
	return o.raiser.Collector().Drain(clear)
}

// buildState carries per-invocation paths between stages.
type buildState struct {
	workspaceDir string
	mediaDir     string
	mountDir     string
	payloadDir   string
	stagedImage  string
	packagePath  string
	artifact     string
}

func (o *Orchestrator) newBuildState() *buildState {
	ws := filepath.Join(o.opts.WorkPath, workspaceDirName)

	return &buildState{
		workspaceDir: ws,
		mediaDir:     filepath.Join(ws, "media"),
		mountDir:     filepath.Join(ws, "mount"),
		payloadDir:   filepath.Join(ws, "payload"),
		stagedImage:  filepath.Join(ws, "media", filepath.Base(o.opts.ImagePath)),
	}
}

// Build runs the pipeline to completion. The returned report carries the
// terminal state and, on success, the artifact path. Suppressed failures are
// retrievable through Errors.
func (o *Orchestrator) Build(ctx context.Context) (*Report, error) {
	report := &Report{State: StateFailed}
	st := o.newBuildState()

	logger := ctxlog.Logger(ctx).With("component", source)
	logger.Info("build starting",
		"image", o.opts.ImagePath,
		"output", o.opts.OutputPath,
		"runtimeVersion", o.opts.RuntimeVersion,
		"dryRun", o.opts.DryRun)

	// Preconditions. Both must pass before any mutation occurs.
	if err := o.validate(ctx); err != nil {
		return report, err
	}

	if err := o.resourceCheck(ctx); err != nil {
		return report, err
	}

	if o.opts.DryRun {
		report.State = StateSucceeded
		report.Planned = o.plan(st)

		logger.Info("dry run complete, no changes made")

		return report, nil
	}

	if err := o.stage(ctx, st); err != nil {
		return report, err
	}

	if err := o.transform(ctx, st); err != nil {
		return report, err
	}

	if err := o.pack(ctx, st); err != nil {
		return report, err
	}

	o.finalize(ctx, st)

	report.State = StateSucceeded
	report.ArtifactPath = st.artifact

	logger.Info("build succeeded", "artifact", st.artifact)

	return report, nil
}

// plan describes the actions a real run would take, for dry-run reporting.
func (o *Orchestrator) plan(st *buildState) []string {
	planned := []string{
		fmt.Sprintf("stage %s into %s", o.opts.ImagePath, st.mediaDir),
		fmt.Sprintf("resolve runtime package %s", o.opts.RuntimeVersion),
		fmt.Sprintf("mount image at %s and inject runtime payload", st.mountDir),
		fmt.Sprintf("create installable media at %s", o.opts.OutputPath),
	}

	for _, d := range o.opts.DriverPaths {
		planned = append(planned, fmt.Sprintf("stage drivers from %s", d))
	}

	for _, b := range o.opts.BrandingPaths {
		planned = append(planned, fmt.Sprintf("stage branding from %s", b))
	}

	if !o.opts.SkipCleanup {
		planned = append(planned, fmt.Sprintf("remove workspace %s", st.workspaceDir))
	}

	return planned
}
