// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package copyengine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/peforge/peforge/internal/builderr"
)

func writeFiles(t *testing.T, fs afero.Fs, dir string, n int) []string {
	t.Helper()

	paths := make([]string, 0, n)

	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("file-%03d.dat", i))
		require.NoError(t, afero.WriteFile(fs, p, []byte(fmt.Sprintf("payload %d", i)), 0o644))
		paths = append(paths, p)
	}

	return paths
}

func TestCopyManyAllSucceed(t *testing.T) {
	fs := afero.NewMemMapFs()
	sources := writeFiles(t, fs, "/src", 5)

	engine := New(fs, builderr.NewCollector(0))

	copied, err := engine.CopyMany(context.Background(), sources, "/dst", 4, false)
	require.NoError(t, err)
	assert.Equal(t, 5, copied)

	for i := range 5 {
		data, err := afero.ReadFile(fs, filepath.Join("/dst", fmt.Sprintf("file-%03d.dat", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("payload %d", i), string(data))
	}
}

func TestCopyManyEmptySourceList(t *testing.T) {
	engine := New(afero.NewMemMapFs(), builderr.NewCollector(0))

	copied, err := engine.CopyMany(context.Background(), nil, "/dst", 4, false)
	require.NoError(t, err)
	assert.Zero(t, copied)
}

func TestCopyManyReportsFailedSubset(t *testing.T) {
	fs := afero.NewMemMapFs()
	sources := writeFiles(t, fs, "/src", 6)

	// Two of the sources do not exist.
	sources = append(sources, "/src/missing-1.dat", "/src/missing-2.dat")

	collector := builderr.NewCollector(0)
	engine := New(fs, collector)

	copied, err := engine.CopyMany(context.Background(), sources, "/dst", 4, false)
	require.Error(t, err)
	assert.Equal(t, 6, copied)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryFileSystem, be.Category)

	failed, ok := be.Data["failedPaths"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"/src/missing-1.dat", "/src/missing-2.dat"}, failed)

	require.Len(t, collector.Drain(true), 1)
}

func TestCopyManySequentialBelowThreshold(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := afero.NewMemMapFs()
	sources := writeFiles(t, fs, "/src", 8)

	engine := New(fs, builderr.NewCollector(0))
	engine.SequentialThreshold = 10

	copied, err := engine.CopyMany(context.Background(), sources, "/dst", 8, false)
	require.NoError(t, err)
	assert.Equal(t, 8, copied)
	assert.LessOrEqual(t, engine.PeakConcurrency(), int64(1))
}

func TestCopyManyHonorsThrottleLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := afero.NewMemMapFs()
	sources := writeFiles(t, fs, "/src", 40)

	stubs := gostub.Stub(&copyFileFn, func(fs afero.Fs, task *Task) error {
		time.Sleep(5 * time.Millisecond)

		return afero.WriteFile(fs, task.Dest, []byte("x"), 0o644)
	})
	defer stubs.Reset()

	engine := New(fs, builderr.NewCollector(0))
	engine.SequentialThreshold = 4

	const throttle = 3

	copied, err := engine.CopyMany(context.Background(), sources, "/dst", throttle, false)
	require.NoError(t, err)
	assert.Equal(t, 40, copied)

	peak := engine.PeakConcurrency()
	assert.LessOrEqual(t, peak, int64(throttle), "throttle limit is a hard invariant")
	assert.Greater(t, peak, int64(1), "parallel strategy should overlap copies")
}

func TestCopyManyRecurseExpandsDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/drivers/net/e1000.inf", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/drivers/storage/nvme.inf", []byte("b"), 0o644))

	engine := New(fs, builderr.NewCollector(0))

	copied, err := engine.CopyMany(context.Background(), []string{"/src/drivers"}, "/dst", 2, true)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)

	exists, err := afero.Exists(fs, "/dst/drivers/net/e1000.inf")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = afero.Exists(fs, "/dst/drivers/storage/nvme.inf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCopyManyFailureDoesNotAbortSiblings(t *testing.T) {
	fs := afero.NewMemMapFs()
	sources := writeFiles(t, fs, "/src", 40)

	stubs := gostub.Stub(&copyFileFn, func(fs afero.Fs, task *Task) error {
		if strings.HasSuffix(task.Source, "5.dat") {
			return fmt.Errorf("simulated failure for %s", task.Source)
		}

		return afero.WriteFile(fs, task.Dest, []byte("x"), 0o644)
	})
	defer stubs.Reset()

	engine := New(fs, builderr.NewCollector(0))
	engine.SequentialThreshold = 4

	copied, err := engine.CopyMany(context.Background(), sources, "/dst", 8, false)
	require.Error(t, err)

	// file-005, file-015, file-025, file-035 fail; the rest copy.
	assert.Equal(t, 36, copied)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)

	failed, ok := be.Data["failedPaths"].([]string)
	require.True(t, ok)
	assert.Len(t, failed, 4)
}

func TestCopyManyNoDestination(t *testing.T) {
	engine := New(afero.NewMemMapFs(), builderr.NewCollector(0))

	_, err := engine.CopyMany(context.Background(), []string{"/src/a"}, "", 4, false)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryValidation, be.Category)
}
