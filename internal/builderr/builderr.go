// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package builderr defines the structured error taxonomy used across the
// build orchestration subsystem. Every failure that crosses a component
// boundary is a *BuildError; unstructured errors are wrapped at the point of
// failure, never passed through raw.
package builderr

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// BuildError is a categorized failure raised by a build component. It carries
// a unique identifier, a human-readable message and structured fields for
// programmatic handling. BuildError implements error and unwraps to its cause.
type BuildError struct {
	ID        uuid.UUID      // Unique identifier for this occurrence
	Message   string         // Human-readable description
	Category  Category       // Taxonomy classification
	Source    string         // Component that raised the error
	Timestamp time.Time      // When the error was constructed
	Cause     error          // Wrapped underlying error, may be nil
	Data      map[string]any // Additional structured context, may be nil
}

// Option mutates a BuildError during construction.
type Option func(*BuildError)

// WithCause attaches the underlying error being wrapped.
func WithCause(err error) Option {
	return func(e *BuildError) {
		e.Cause = err
	}
}

// WithData attaches one structured context value.
func WithData(key string, value any) Option {
	return func(e *BuildError) {
		if e.Data == nil {
			e.Data = make(map[string]any)
		}

		e.Data[key] = value
	}
}

// WithDataMap attaches a map of structured context values.
func WithDataMap(data map[string]any) Option {
	return func(e *BuildError) {
		if e.Data == nil {
			e.Data = make(map[string]any, len(data))
		}

		maps.Copy(e.Data, data)
	}
}

// New constructs a BuildError. Construction assigns the ID and timestamp;
// callers supply the rest through arguments and options.
func New(message string, category Category, source string, opts ...Option) *BuildError {
	e := &BuildError{
		ID:        uuid.New(),
		Message:   message,
		Category:  category,
		Source:    source,
		Timestamp: time.Now(),
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s [%s]", e.Source, e.Message, e.Category)
	}

	return fmt.Sprintf("%s: %s [%s]: %s", e.Source, e.Message, e.Category, e.Cause.Error())
}

// Unwrap returns the wrapped cause, if any.
func (e *BuildError) Unwrap() error {
	return e.Cause
}
