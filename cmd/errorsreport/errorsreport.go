// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package errorsreport implements the errors command, which renders an error
// report file written by a previous build.
package errorsreport

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v3"

	"github.com/peforge/peforge/internal/builderr"
)

const (
	fileArg      = "file"
	categoryFlag = "category"
)

// ErrNoReportFile is returned when no report file argument is given.
var ErrNoReportFile = errors.New("provide an error report file to read")

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	categoryColor = color.New(color.FgYellow)
	causeColor    = color.New(color.FgRed)
)

// ErrorsCmd renders a build error report.
var ErrorsCmd = &cli.Command{
	Name:        "errors",
	Description: "Render the errors collected by a previous build, newest last.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      fileArg,
			UsageText: "REPORTFILE",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  categoryFlag,
			Usage: "Only show errors of this category (e.g. filesystem, operation-timeout)",
		},
	},
	Action: actionFunc,
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	path := cmd.StringArg(fileArg)
	if path == "" {
		return cli.Exit(ErrNoReportFile.Error(), 1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("could not read report file %s: %s", path, err.Error()), 1)
	}

	var records []builderr.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return cli.Exit(fmt.Sprintf("could not parse report file %s: %s", path, err.Error()), 1)
	}

	if want := cmd.String(categoryFlag); want != "" {
		if _, err := builderr.NewCategory(want); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		records = filterByCategory(records, want)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.Writer, "no errors to show")
		return nil
	}

	for i, r := range records {
		headerColor.Fprintf(cmd.Writer, "%d. %s\n", i+1, r.Message)
		fmt.Fprintf(cmd.Writer, "   id: %s  source: %s  at: %s\n",
			r.ID, r.Source, r.Timestamp.Format("2006-01-02 15:04:05"))
		categoryColor.Fprintf(cmd.Writer, "   category: %s\n", r.Category)

		if r.Cause != "" {
			causeColor.Fprintf(cmd.Writer, "   cause: %s\n", r.Cause)
		}

		for k, v := range r.Data {
			fmt.Fprintf(cmd.Writer, "   %s: %v\n", k, v)
		}
	}

	fmt.Fprintf(cmd.Writer, "%d errors\n", len(records))

	return nil
}

func filterByCategory(records []builderr.Record, category string) []builderr.Record {
	out := make([]builderr.Record, 0, len(records))

	for _, r := range records {
		if r.Category == category {
			out = append(out, r)
		}
	}

	return out
}
