// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package build implements the build command, which runs one media build
// from a YAML manifest and/or command-line flags.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/peforge/peforge/internal/buildconfig"
	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/copyengine"
	"github.com/peforge/peforge/internal/critsec"
	"github.com/peforge/peforge/internal/ctxlog"
	"github.com/peforge/peforge/internal/imaging"
	"github.com/peforge/peforge/internal/jobs"
	"github.com/peforge/peforge/internal/orchestrator"
	"github.com/peforge/peforge/internal/retry"
	"github.com/peforge/peforge/internal/runtimepkg"
)

const (
	manifestArg = "manifest"

	imageFlag             = "image"
	outputFlag            = "output"
	workDirFlag           = "work-dir"
	runtimeVersionFlag    = "runtime-version"
	driverFlag            = "driver"
	brandingFlag          = "branding"
	extendedRecoveryFlag  = "extended-recovery"
	dryRunFlag            = "dry-run"
	continueOnErrorFlag   = "continue-on-error"
	skipCleanupFlag       = "skip-cleanup"
	jobTimeoutFlag        = "job-timeout"
	throttleFlag          = "throttle"
	volumeLabelFlag       = "volume-label"
	imageToolFlag         = "image-tool"
	isoToolFlag           = "iso-tool"
	bulkToolFlag          = "bulk-tool"
	packageURLFlag        = "package-url"
	cacheDirFlag          = "cache-dir"
	lockDirFlag           = "lock-dir"
	errorsOutFlag         = "errors-out"
	defaultPackageBaseURL = "https://downloads.peforge.dev/runtime"
)

// ErrNoBuildInputs is returned when neither a manifest nor the minimum flags
// are provided.
var ErrNoBuildInputs = errors.New("provide a manifest file or --image and --output")

// BuildCmd runs a deployment media build.
var BuildCmd = &cli.Command{
	Name:        "build",
	Description: "Build customized deployment media from a base boot image.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      manifestArg,
			UsageText: "[YAMLFILE]",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{Name: imageFlag, Usage: "Base boot image to customize"},
		&cli.StringFlag{Name: outputFlag, Usage: "Path of the installable media to produce"},
		&cli.StringFlag{Name: workDirFlag, Usage: "Directory for the scratch workspace"},
		&cli.StringFlag{Name: runtimeVersionFlag, Usage: "Script runtime version to inject (major.minor.patch)"},
		&cli.StringSliceFlag{Name: driverFlag, Usage: "Driver directory to stage (repeatable)"},
		&cli.StringSliceFlag{Name: brandingFlag, Usage: "Branding asset path to stage (repeatable)"},
		&cli.BoolFlag{Name: extendedRecoveryFlag, Usage: "Include the extended recovery payload"},
		&cli.BoolFlag{Name: dryRunFlag, Usage: "Validate and report the plan without making changes"},
		&cli.BoolFlag{Name: continueOnErrorFlag, Usage: "Collect non-fatal stage failures instead of stopping"},
		&cli.BoolFlag{Name: skipCleanupFlag, Usage: "Leave the scratch workspace in place"},
		&cli.DurationFlag{Name: jobTimeoutFlag, Usage: "Overall timeout for background transform jobs"},
		&cli.IntFlag{Name: throttleFlag, Usage: "Maximum concurrent copy operations"},
		&cli.StringFlag{Name: volumeLabelFlag, Usage: "Volume label for the media"},
		&cli.StringFlag{Name: imageToolFlag, Value: "dism", Usage: "Image servicing executable"},
		&cli.StringFlag{Name: isoToolFlag, Value: "oscdimg", Usage: "Media assembly executable"},
		&cli.StringFlag{Name: bulkToolFlag, Value: "robocopy", Usage: "Bulk file copy executable"},
		&cli.StringFlag{Name: packageURLFlag, Value: defaultPackageBaseURL, Usage: "Base URL for runtime packages"},
		&cli.StringFlag{Name: cacheDirFlag, Usage: "Runtime package cache directory"},
		&cli.StringFlag{Name: lockDirFlag, Usage: "Directory for cross-process lock files"},
		&cli.StringFlag{Name: errorsOutFlag, Usage: "Write collected build errors to this YAML file"},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fs := afero.NewOsFs()
	collector := builderr.NewCollector(0)

	bulk, err := imaging.NewBulkCopier(cmd.String(bulkToolFlag))
	if err != nil {
		return cli.Exit(fmt.Sprintf("bulk copy tool unusable: %s", err.Error()), 1)
	}

	retryExec := retry.New(collector)

	resolver := runtimepkg.New(
		fs,
		cacheDir(cmd),
		cmd.String(packageURLFlag),
		runtimepkg.NewGetterFetcher(),
		retryExec,
		&critsec.FileProvider{Dir: lockDir(cmd)},
		collector,
	)

	orc := orchestrator.New(
		opts,
		fs,
		builderr.NewRaiser(collector, opts.ContinueOnError),
		retryExec,
		copyengine.New(fs, collector),
		&imaging.ExecToolchain{
			ImageTool: cmd.String(imageToolFlag),
			ISOTool:   cmd.String(isoToolFlag),
		},
		bulk,
		jobs.NewGoroutineRuntime(),
		resolver,
	)

	report, buildErr := orc.Build(ctx)

	collected := orc.Errors(false)
	if path := cmd.String(errorsOutFlag); path != "" && len(collected) > 0 {
		if werr := writeErrorReport(path, collected); werr != nil {
			ctxlog.Warn(ctx, "could not write error report", "path", path, "error", werr)
		}
	}

	if buildErr != nil {
		return cli.Exit(fmt.Sprintf("build failed: %s", buildErr.Error()), 1)
	}

	if opts.DryRun {
		fmt.Fprintln(cmd.Writer, "dry run, planned actions:")

		for _, p := range report.Planned {
			fmt.Fprintf(cmd.Writer, "  - %s\n", p)
		}

		return nil
	}

	fmt.Fprintf(cmd.Writer, "media written to %s\n", report.ArtifactPath)

	if len(collected) > 0 {
		fmt.Fprintf(cmd.Writer, "%d non-fatal errors were collected, run with --%s to save them\n",
			len(collected), errorsOutFlag)
	}

	return nil
}

// resolveOptions merges the manifest (if any) with flag overrides. Flags win.
// An explicit job timeout of zero is preserved; the default applies only when
// neither the manifest nor a flag configures one.
func resolveOptions(cmd *cli.Command) (orchestrator.Options, error) {
	var opts orchestrator.Options

	timeoutSet := cmd.IsSet(jobTimeoutFlag)

	if manifest := cmd.StringArg(manifestArg); manifest != "" {
		def, err := buildconfig.Load(afero.NewOsFs(), manifest)
		if err != nil {
			return orchestrator.Options{}, err
		}

		opts, err = def.Options()
		if err != nil {
			return orchestrator.Options{}, err
		}

		if def.JobTimeout != "" {
			timeoutSet = true
		}
	}

	if v := cmd.String(imageFlag); v != "" {
		opts.ImagePath = v
	}

	if v := cmd.String(outputFlag); v != "" {
		opts.OutputPath = v
	}

	if v := cmd.String(workDirFlag); v != "" {
		opts.WorkPath = v
	}

	if v := cmd.String(runtimeVersionFlag); v != "" {
		opts.RuntimeVersion = v
	}

	if v := cmd.StringSlice(driverFlag); len(v) > 0 {
		opts.DriverPaths = v
	}

	if v := cmd.StringSlice(brandingFlag); len(v) > 0 {
		opts.BrandingPaths = v
	}

	if cmd.IsSet(extendedRecoveryFlag) {
		opts.IncludeExtendedRecovery = cmd.Bool(extendedRecoveryFlag)
	}

	if cmd.IsSet(dryRunFlag) {
		opts.DryRun = cmd.Bool(dryRunFlag)
	}

	if cmd.IsSet(continueOnErrorFlag) {
		opts.ContinueOnError = cmd.Bool(continueOnErrorFlag)
	}

	if cmd.IsSet(skipCleanupFlag) {
		opts.SkipCleanup = cmd.Bool(skipCleanupFlag)
	}

	if cmd.IsSet(jobTimeoutFlag) {
		opts.JobTimeout = cmd.Duration(jobTimeoutFlag)
	}

	if cmd.IsSet(throttleFlag) {
		opts.ThrottleLimit = cmd.Int(throttleFlag)
	}

	if v := cmd.String(volumeLabelFlag); v != "" {
		opts.VolumeLabel = v
	}

	if !timeoutSet {
		opts.JobTimeout = orchestrator.DefaultJobTimeout
	}

	if opts.ImagePath == "" || opts.OutputPath == "" {
		return orchestrator.Options{}, ErrNoBuildInputs
	}

	if opts.WorkPath == "" {
		opts.WorkPath = os.TempDir()
	}

	return opts, nil
}

func cacheDir(cmd *cli.Command) string {
	if v := cmd.String(cacheDirFlag); v != "" {
		return v
	}

	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "peforge", "runtime")
	}

	return filepath.Join(os.TempDir(), "peforge-runtime-cache")
}

func lockDir(cmd *cli.Command) string {
	if v := cmd.String(lockDirFlag); v != "" {
		return v
	}

	return filepath.Join(os.TempDir(), "peforge-locks")
}

func writeErrorReport(path string, errs []*builderr.BuildError) error {
	data, err := yaml.Marshal(builderr.Records(errs))
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
