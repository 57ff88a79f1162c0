// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package builderr

import (
	"context"
	"sync"

	"github.com/peforge/peforge/internal/ctxlog"
)

// Collector is a process-wide, append-only collection of BuildErrors, ordered
// by occurrence. Appends are synchronized so that concurrent workers never
// lose entries. When a maximum size is configured the oldest entries are
// evicted first; zero means unbounded.
type Collector struct {
	mu   sync.Mutex
	errs []*BuildError
	max  int
}

// NewCollector creates a Collector. maxEntries <= 0 means no size cap.
func NewCollector(maxEntries int) *Collector {
	return &Collector{max: maxEntries}
}

// Append adds an error to the collection. Nil errors are ignored.
func (c *Collector) Append(e *BuildError) {
	if e == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.errs = append(c.errs, e)

	if c.max > 0 && len(c.errs) > c.max {
		c.errs = c.errs[len(c.errs)-c.max:]
	}
}

// Drain returns the collected errors in append order. If clear is true the
// collection is emptied.
func (c *Collector) Drain(clear bool) []*BuildError {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*BuildError, len(c.errs))
	copy(out, c.errs)

	if clear {
		c.errs = nil
	}

	return out
}

// Len returns the current number of collected errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.errs)
}

// Raiser appends errors to a Collector and decides whether they terminate the
// caller. The continue-on-error policy is fixed at construction; a "live"
// policy change means constructing a new Raiser, not mutating this one.
type Raiser struct {
	collector       *Collector
	continueOnError bool
}

// NewRaiser creates a Raiser over the given collector.
func NewRaiser(c *Collector, continueOnError bool) *Raiser {
	return &Raiser{collector: c, continueOnError: continueOnError}
}

// Collector returns the underlying collector.
func (r *Raiser) Collector() *Collector {
	return r.collector
}

// Raise records the error and returns it if it should terminate the caller.
// The error is suppressed (recorded, nil returned) when the caller asks for
// suppression or the continue-on-error policy is active.
func (r *Raiser) Raise(ctx context.Context, e *BuildError, suppress bool) error {
	r.collector.Append(e)

	if suppress || r.continueOnError {
		ctxlog.Warn(ctx, "error suppressed",
			"errorId", e.ID.String(),
			"category", e.Category.String(),
			"source", e.Source,
			"message", e.Message)

		return nil
	}

	ctxlog.Error(ctx, "error raised",
		"errorId", e.ID.String(),
		"category", e.Category.String(),
		"source", e.Source,
		"message", e.Message)

	return e
}

// RaiseFatal records the error and always returns it, regardless of the
// continue-on-error policy. Used for failures that leave the caller without
// its primary artifact.
func (r *Raiser) RaiseFatal(ctx context.Context, e *BuildError) error {
	r.collector.Append(e)

	ctxlog.Error(ctx, "fatal error raised",
		"errorId", e.ID.String(),
		"category", e.Category.String(),
		"source", e.Source,
		"message", e.Message)

	return e
}
