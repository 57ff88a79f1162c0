// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package retry wraps fallible, idempotent operations with exponential
// backoff. It provides no deduplication or side-effect suppression; callers
// must ensure retried operations are safe to repeat.
package retry

import (
	"errors"
	"math"
	"time"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction and supplied per call.
type Policy struct {
	MaxAttempts   int           // Total attempts, including the first
	InitialDelay  time.Duration // Delay before the second attempt
	BackoffFactor float64       // Multiplier applied to each subsequent delay
}

var (
	// ErrMaxAttempts is returned when a policy has fewer than one attempt.
	ErrMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInitialDelay is returned when a policy has a negative initial delay.
	ErrInitialDelay = errors.New("initial delay must not be negative")
	// ErrBackoffFactor is returned when a policy has a backoff factor below 1.
	ErrBackoffFactor = errors.New("backoff factor must be at least 1")
)

// DefaultPolicy returns the default policy: 3 attempts, 1s initial delay,
// doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrMaxAttempts
	}

	if p.InitialDelay < 0 {
		return ErrInitialDelay
	}

	if p.BackoffFactor < 1 {
		return ErrBackoffFactor
	}

	return nil
}

// Delay returns the backoff delay before the given 1-based attempt.
// Attempt 1 has no delay; attempt k (k >= 2) waits
// InitialDelay * BackoffFactor^(k-2).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	return time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-2)))
}
