// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peforge/peforge/internal/builderr"
)

var errFlaky = errors.New("flaky")

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	delays := &[]time.Duration{}
	stubs := gostub.Stub(&sleepFn, func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
	t.Cleanup(stubs.Reset)

	return delays
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 4, InitialDelay: time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.ErrorIs(t, Policy{MaxAttempts: 0, BackoffFactor: 2}.Validate(), ErrMaxAttempts)
	assert.ErrorIs(t, Policy{MaxAttempts: 1, InitialDelay: -time.Second, BackoffFactor: 2}.Validate(), ErrInitialDelay)
	assert.ErrorIs(t, Policy{MaxAttempts: 1, BackoffFactor: 0.5}.Validate(), ErrBackoffFactor)
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	delays := stubSleep(t)
	ex := New(builderr.NewCollector(0))

	attempts := 0
	result, err := Do(context.Background(), ex, "fetch package",
		Policy{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2},
		func(_ context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errFlaky
			}

			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, *delays)
}

func TestDoExhaustsAttempts(t *testing.T) {
	stubSleep(t)

	collector := builderr.NewCollector(0)
	ex := New(collector)

	attempts := 0
	_, err := Do(context.Background(), ex, "fetch package",
		Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2},
		func(_ context.Context) (int, error) {
			attempts++
			return 0, errFlaky
		})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryOperationTimeout, be.Category)
	assert.Equal(t, 3, be.Data["attempts"])
	assert.ErrorIs(t, err, errFlaky)

	collected := collector.Drain(true)
	require.Len(t, collected, 1)
	assert.Equal(t, be, collected[0])
}

func TestDoFirstAttemptHasNoDelay(t *testing.T) {
	delays := stubSleep(t)
	ex := New(builderr.NewCollector(0))

	_, err := Do(context.Background(), ex, "noop", DefaultPolicy(),
		func(_ context.Context) (struct{}, error) {
			return struct{}{}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, *delays)
}

func TestDoRejectsInvalidPolicy(t *testing.T) {
	ex := New(builderr.NewCollector(0))

	_, err := Do(context.Background(), ex, "bad", Policy{},
		func(_ context.Context) (struct{}, error) {
			t.Fatal("operation must not run under an invalid policy")
			return struct{}{}, nil
		})

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryConfiguration, be.Category)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ex := New(builderr.NewCollector(0))

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := Do(ctx, ex, "cancelled",
		Policy{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 2},
		func(_ context.Context) (struct{}, error) {
			attempts++

			cancel()

			return struct{}{}, errFlaky
		})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var be *builderr.BuildError

	require.ErrorAs(t, err, &be)
	assert.Equal(t, builderr.CategoryOperationTimeout, be.Category)
	assert.ErrorIs(t, err, context.Canceled)
}
