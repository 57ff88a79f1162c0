// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/ctxlog"
	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/jobs"
	"github.com/peforge/peforge/internal/retry"
)

// stage is the Staging stage: copy the source image into the scratch
// workspace, preferring the external bulk copy tool and falling back to the
// engine. The copy is wrapped in the retry executor. Failures may be
// downgraded by the continue-on-error policy.
func (o *Orchestrator) stage(ctx context.Context, st *buildState) error {
	ctxlog.Info(ctx, "staging workspace", "workspace", st.workspaceDir)

	for _, dir := range []string{st.mediaDir, st.mountDir, st.payloadDir} {
		if err := o.fs.MkdirAll(dir, 0o755); err != nil {
			return o.raiser.Raise(ctx, builderr.New(
				fmt.Sprintf("could not create workspace directory %q", dir),
				builderr.CategoryFileSystem, source,
				builderr.WithCause(err)), false)
		}
	}

	_, err := retry.Do(ctx, o.retryExec, "stage source image", retry.DefaultPolicy(),
		func(ctx context.Context) (int, error) {
			return o.copyImage(ctx, st)
		})
	if err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			"could not stage source image into workspace",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)), false)
	}

	if err := o.stageAssets(ctx, st); err != nil {
		return err
	}

	return nil
}

// copyImage places the source image into the media directory, preferring the
// external bulk copy tool and falling back to the engine. Callers wrap it in
// the retry executor.
func (o *Orchestrator) copyImage(ctx context.Context, st *buildState) (int, error) {
	if o.bulkAvailable() {
		if err := o.bulk.Copy(ctx, o.opts.ImagePath, st.mediaDir); err != nil {
			return 0, err
		}

		return 1, nil
	}

	return o.engine.CopyMany(ctx, []string{o.opts.ImagePath}, st.mediaDir, o.opts.ThrottleLimit, false)
}

func (o *Orchestrator) bulkAvailable() bool {
	return o.bulk != nil && o.bulk.Available()
}

// stageAssets copies driver and branding trees into the media directory.
// The external bulk copy tool is preferred when available; the decision was
// made once at startup, not probed here.
func (o *Orchestrator) stageAssets(ctx context.Context, st *buildState) error {
	assets := make([]string, 0, len(o.opts.DriverPaths)+len(o.opts.BrandingPaths))
	assets = append(assets, o.opts.DriverPaths...)
	assets = append(assets, o.opts.BrandingPaths...)

	if len(assets) == 0 {
		return nil
	}

	if o.bulkAvailable() {
		for _, src := range assets {
			if err := o.bulk.Copy(ctx, src, st.mediaDir); err != nil {
				if rerr := o.raiser.Raise(ctx, builderr.New(
					fmt.Sprintf("bulk copy of %q failed", src),
					builderr.CategoryFileSystem, source,
					builderr.WithCause(err)), false); rerr != nil {
					return rerr
				}
			}
		}

		return nil
	}

	if _, err := o.engine.CopyMany(ctx, assets, st.mediaDir, o.opts.ThrottleLimit, true); err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			"could not stage drivers and branding assets",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)), false)
	}

	return nil
}

// transform is the Transforming stage: resolve the runtime package, then run
// exactly two background jobs in parallel, one mounting and preparing the
// image and one staging the injection payload. Both are waited for with a
// single overall timeout.
func (o *Orchestrator) transform(ctx context.Context, st *buildState) error {
	pkgPath, err := o.resolver.Resolve(ctx, o.opts.RuntimeVersion)
	if err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			fmt.Sprintf("could not resolve runtime package %s", o.opts.RuntimeVersion),
			builderr.CategoryNetwork, source,
			builderr.WithCause(err)), false)
	}

	st.packagePath = pkgPath

	// The mount job publishes its handle through an atomic pointer so the
	// timeout path can discard it even while the job is still settling.
	var handle atomic.Pointer[imaging.Handle]

	mountJob, err := o.runtime.Submit(ctx, jobs.Unit{
		Name: "mount and prepare image",
		Kind: jobs.KindMount,
		Func: func(jobCtx context.Context) (string, error) {
			h, err := o.toolchain.Mount(jobCtx, st.stagedImage, st.mountDir)
			if err != nil {
				return "", err
			}

			handle.Store(h)

			return "image mounted", nil
		},
	})
	if err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			"could not submit mount job",
			builderr.CategoryConcurrency, source,
			builderr.WithCause(err)), false)
	}

	injectJob, err := o.runtime.Submit(ctx, jobs.Unit{
		Name: "stage runtime payload",
		Kind: jobs.KindInject,
		Func: func(jobCtx context.Context) (string, error) {
			return o.stagePayload(jobCtx, st)
		},
	})
	if err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			"could not submit payload job",
			builderr.CategoryConcurrency, source,
			builderr.WithCause(err)), false)
	}

	jobList := []*jobs.Job{mountJob, injectJob}

	if ok := o.runtime.Wait(ctx, jobList, o.opts.JobTimeout); !ok {
		o.discardMount(ctx, handle.Load())

		return o.raiser.Raise(ctx, builderr.New(
			"background jobs timed out",
			builderr.CategoryOperationTimeout, source,
			builderr.WithData("timeout", o.opts.JobTimeout.String())), false)
	}

	if err := o.collectJobFailures(ctx, jobList); err != nil {
		o.discardMount(ctx, handle.Load())

		return err
	}

	return o.inject(ctx, st, handle.Load())
}

// collectJobFailures aggregates every failed job's message into one error;
// all failures are reported, not just the first.
func (o *Orchestrator) collectJobFailures(ctx context.Context, jobList []*jobs.Job) error {
	messages := make([]string, 0, len(jobList))

	for _, j := range jobList {
		outcome := o.runtime.Outcome(j)
		if !outcome.Success {
			messages = append(messages, fmt.Sprintf("%s: %s", j.Kind, outcome.Message))
		}
	}

	if len(messages) == 0 {
		return nil
	}

	return o.raiser.Raise(ctx, builderr.New(
		"one or more background tasks failed",
		builderr.CategoryConcurrency, source,
		builderr.WithData("jobErrors", messages)), false)
}

// stagePayload lays the runtime package and recovery payload out under the
// payload directory, ready to be injected into the mounted image.
func (o *Orchestrator) stagePayload(ctx context.Context, st *buildState) (string, error) {
	sources := []string{st.packagePath}

	copied, err := o.engine.CopyMany(ctx, sources, st.payloadDir, o.opts.ThrottleLimit, false)
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("staged %d payload files", copied)

	if o.opts.IncludeExtendedRecovery {
		msg += " (extended recovery included)"
	}

	return msg, nil
}

// inject applies the staged payload to the mounted image and commits the
// changes. A failed mount may have been suppressed upstream, in which case
// there is nothing to inject into and the build cannot produce media.
func (o *Orchestrator) inject(ctx context.Context, st *buildState, handle *imaging.Handle) error {
	if handle == nil {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			"image is not mounted, cannot inject payload",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(imaging.ErrNotMounted)))
	}

	if _, err := o.engine.CopyMany(ctx, []string{st.payloadDir}, handle.MountDir, o.opts.ThrottleLimit, true); err != nil {
		o.discardMount(ctx, handle)

		return o.raiser.Raise(ctx, builderr.New(
			"could not inject runtime payload into mounted image",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)), false)
	}

	if err := o.toolchain.Dismount(ctx, handle, true); err != nil {
		return o.raiser.Raise(ctx, builderr.New(
			"could not commit changes to image",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)), false)
	}

	return nil
}

// discardMount releases a mount handle without committing. Failures are
// logged, not raised: the build is already failing for another reason.
func (o *Orchestrator) discardMount(ctx context.Context, handle *imaging.Handle) {
	if handle == nil {
		return
	}

	if err := o.toolchain.Dismount(ctx, handle, false); err != nil {
		ctxlog.Warn(ctx, "could not discard mounted image", "mountDir", handle.MountDir, "error", err)
	}
}

// pack is the Packaging stage. Its failures are never suppressed, whatever
// the continue-on-error policy says: without the artifact the caller has
// nothing.
func (o *Orchestrator) pack(ctx context.Context, st *buildState) error {
	artifact, err := o.toolchain.CreateISO(ctx, st.mediaDir, o.opts.OutputPath, imaging.ISOOptions{
		VolumeLabel:             o.opts.VolumeLabel,
		IncludeExtendedRecovery: o.opts.IncludeExtendedRecovery,
	})
	if err != nil {
		return o.raiser.RaiseFatal(ctx, builderr.New(
			"failed during operation 'Creating ISO file'",
			builderr.CategoryFileSystem, source,
			builderr.WithCause(err)))
	}

	st.artifact = artifact

	return nil
}

// finalize is the Finalizing stage: remove the scratch workspace unless
// asked not to. Cleanup failures are logged as warnings, never raised; the
// artifact already exists.
func (o *Orchestrator) finalize(ctx context.Context, st *buildState) {
	if o.opts.SkipCleanup {
		ctxlog.Info(ctx, "skipping workspace cleanup", "workspace", st.workspaceDir)
		return
	}

	if err := o.fs.RemoveAll(st.workspaceDir); err != nil {
		ctxlog.Warn(ctx, "could not remove workspace", "workspace", st.workspaceDir, "error", err)
		return
	}

	ctxlog.Debug(ctx, "workspace removed", "workspace", st.workspaceDir)
}
