// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package buildconfig loads a build manifest from YAML and turns it into
// orchestrator options. Flags given on the command line take precedence over
// the manifest; the manifest takes precedence over defaults.
package buildconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/peforge/peforge/internal/builderr"
	"github.com/peforge/peforge/internal/orchestrator"
)

const source = "buildconfig"

var (
	// ErrInvalidYAML is returned when the manifest does not parse.
	ErrInvalidYAML = errors.New("invalid YAML")
	// ErrNoImage is returned when the manifest names no source image.
	ErrNoImage = errors.New("no source image specified")
	// ErrNoOutput is returned when the manifest names no output path.
	ErrNoOutput = errors.New("no output path specified")
	// ErrBadDuration is returned when a duration field does not parse.
	ErrBadDuration = errors.New("invalid duration")
)

// Definition is the root manifest structure.
type Definition struct {
	Name                    string   `yaml:"name"`
	Description             string   `yaml:"description"`
	Image                   string   `yaml:"image"`
	Output                  string   `yaml:"output"`
	WorkDir                 string   `yaml:"work_dir"`
	RuntimeVersion          string   `yaml:"runtime_version"`
	Drivers                 []string `yaml:"drivers"`
	Branding                []string `yaml:"branding"`
	IncludeExtendedRecovery bool     `yaml:"include_extended_recovery"`
	SkipCleanup             bool     `yaml:"skip_cleanup"`
	ContinueOnError         bool     `yaml:"continue_on_error"`
	JobTimeout              string   `yaml:"job_timeout"`
	MinFreeDiskBytes        uint64   `yaml:"min_free_disk_bytes"`
	ThrottleLimit           int      `yaml:"throttle_limit"`
	VolumeLabel             string   `yaml:"volume_label"`
}

// BuildFromYAML parses a manifest from raw YAML.
func BuildFromYAML(yamlData []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(yamlData, &def); err != nil {
		return nil, builderr.New(
			fmt.Sprintf("could not parse build manifest: %v", err),
			builderr.CategoryConfiguration, source,
			builderr.WithCause(ErrInvalidYAML))
	}

	if def.Image == "" {
		return nil, builderr.New(
			"build manifest must name a source image",
			builderr.CategoryConfiguration, source,
			builderr.WithCause(ErrNoImage))
	}

	if def.Output == "" {
		return nil, builderr.New(
			"build manifest must name an output path",
			builderr.CategoryConfiguration, source,
			builderr.WithCause(ErrNoOutput))
	}

	return &def, nil
}

// Load reads a manifest file from the filesystem.
func Load(fs afero.Fs, path string) (*Definition, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, builderr.New(
			fmt.Sprintf("could not read build manifest %q", path),
			builderr.CategoryConfiguration, source,
			builderr.WithCause(err))
	}

	return BuildFromYAML(data)
}

// Options converts the manifest into orchestrator options. Zero-valued
// tuning fields are left for downstream defaults; an explicit job_timeout of
// "0s" is preserved as zero.
func (d *Definition) Options() (orchestrator.Options, error) {
	opts := orchestrator.Options{
		ImagePath:               d.Image,
		OutputPath:              d.Output,
		WorkPath:                d.WorkDir,
		RuntimeVersion:          d.RuntimeVersion,
		DriverPaths:             d.Drivers,
		BrandingPaths:           d.Branding,
		IncludeExtendedRecovery: d.IncludeExtendedRecovery,
		SkipCleanup:             d.SkipCleanup,
		ContinueOnError:         d.ContinueOnError,
		MinFreeDiskBytes:        d.MinFreeDiskBytes,
		ThrottleLimit:           d.ThrottleLimit,
		VolumeLabel:             d.VolumeLabel,
	}

	if d.JobTimeout != "" {
		timeout, err := time.ParseDuration(d.JobTimeout)
		if err != nil {
			return orchestrator.Options{}, builderr.New(
				fmt.Sprintf("job_timeout %q does not parse as a duration", d.JobTimeout),
				builderr.CategoryConfiguration, source,
				builderr.WithCause(ErrBadDuration))
		}

		opts.JobTimeout = timeout
	}

	return opts, nil
}
