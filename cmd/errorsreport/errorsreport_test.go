// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package errorsreport

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/peforge/peforge/internal/builderr"
)

// The categories named as examples in the flag help must actually parse, or
// following the help text yields an error.
func TestCategoryFlagUsageNamesRealCategories(t *testing.T) {
	var usage string

	for _, f := range ErrorsCmd.Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == categoryFlag {
			usage = sf.Usage
		}
	}

	require.NotEmpty(t, usage)

	m := regexp.MustCompile(`\(e\.g\. ([^)]+)\)`).FindStringSubmatch(usage)
	require.Len(t, m, 2)

	for _, example := range strings.Split(m[1], ", ") {
		_, err := builderr.NewCategory(example)
		assert.NoError(t, err, "help text names category %q", example)
	}
}

func TestFilterByCategory(t *testing.T) {
	records := []builderr.Record{
		{Message: "a", Category: "filesystem"},
		{Message: "b", Category: "network"},
		{Message: "c", Category: "filesystem"},
	}

	got := filterByCategory(records, "filesystem")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)
	assert.Equal(t, "c", got[1].Message)

	assert.Empty(t, filterByCategory(records, "concurrency"))
}
