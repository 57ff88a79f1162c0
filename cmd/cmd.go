// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/peforge/peforge/cmd/build"
	"github.com/peforge/peforge/cmd/errorsreport"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		build.BuildCmd,
		errorsreport.ErrorsCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "peforge",
	Description: `Peforge builds customized WinPE deployment media. It stages a base
boot image into a scratch workspace, injects a script runtime and drivers using
parallel background jobs, and packages the result into installable media, with
retry, locking, and continue-on-error policies throughout.`,
	Usage:                 "peforge build peforge.yaml",
	Copyright:             "Copyright (c) peforge authors 2026. All rights reserved.",
	EnableShellCompletion: true,
}
