// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package builderr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewBuildError(t *testing.T) {
	cause := errors.New("disk full")
	e := New("copy failed", CategoryFileSystem, "copyengine",
		WithCause(cause),
		WithData("path", "/tmp/x"),
	)

	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, CategoryFileSystem, e.Category)
	assert.Equal(t, "copyengine", e.Source)
	assert.Equal(t, "/tmp/x", e.Data["path"])
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "copy failed")
	assert.Contains(t, e.Error(), "filesystem")
	assert.Contains(t, e.Error(), "disk full")
}

func TestCategoryRoundTrip(t *testing.T) {
	for _, c := range []Category{
		CategoryUnspecified,
		CategoryValidation,
		CategoryFileSystem,
		CategoryNetwork,
		CategoryConfiguration,
		CategoryOperationTimeout,
		CategoryConcurrency,
	} {
		parsed, err := NewCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := NewCategory("bogus")
	assert.ErrorIs(t, err, ErrCategoryUnknown)
}

func TestCollectorDrain(t *testing.T) {
	c := NewCollector(0)

	for i := range 3 {
		c.Append(New(fmt.Sprintf("err %d", i), CategoryUnspecified, "test"))
	}

	drained := c.Drain(true)
	require.Len(t, drained, 3)
	assert.Equal(t, "err 0", drained[0].Message)
	assert.Equal(t, "err 2", drained[2].Message)

	assert.Empty(t, c.Drain(false))
	assert.Zero(t, c.Len())
}

func TestCollectorEvictsOldest(t *testing.T) {
	c := NewCollector(2)

	for i := range 5 {
		c.Append(New(fmt.Sprintf("err %d", i), CategoryUnspecified, "test"))
	}

	drained := c.Drain(false)
	require.Len(t, drained, 2)
	assert.Equal(t, "err 3", drained[0].Message)
	assert.Equal(t, "err 4", drained[1].Message)
}

func TestCollectorConcurrentAppend(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCollector(0)
	wg := &sync.WaitGroup{}

	const workers = 8

	const perWorker = 50

	for w := range workers {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := range perWorker {
				c.Append(New(fmt.Sprintf("w%d-%d", w, i), CategoryUnspecified, fmt.Sprintf("worker-%d", w)))
			}
		}(w)
	}

	wg.Wait()

	drained := c.Drain(true)
	require.Len(t, drained, workers*perWorker)

	// Per-source append order must be preserved even though the global
	// interleaving is arbitrary.
	lastPerSource := make(map[string]int)
	for _, e := range drained {
		var w, i int

		_, err := fmt.Sscanf(e.Message, "w%d-%d", &w, &i)
		require.NoError(t, err)

		if last, ok := lastPerSource[e.Source]; ok {
			assert.Equal(t, last+1, i, "out of order append for %s", e.Source)
		}

		lastPerSource[e.Source] = i
	}
}

func TestRaiserSuppression(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(0)
	r := NewRaiser(c, false)

	e := New("bad input", CategoryValidation, "orchestrator")
	require.Error(t, r.Raise(ctx, e, false))
	require.NoError(t, r.Raise(ctx, e, true))

	assert.Equal(t, 2, c.Len())
}

func TestRaiserContinueOnError(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(0)
	r := NewRaiser(c, true)

	e := New("flaky", CategoryNetwork, "runtimepkg")
	assert.NoError(t, r.Raise(ctx, e, false))

	// Fatal errors terminate even under continue-on-error.
	fatal := New("no artifact", CategoryFileSystem, "orchestrator")
	assert.Error(t, r.RaiseFatal(ctx, fatal))

	assert.Equal(t, 2, c.Len())
}
