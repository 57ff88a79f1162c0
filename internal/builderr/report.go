// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package builderr

import "time"

// Record is the serializable form of a BuildError, written to error report
// files and read back by the errors command.
type Record struct {
	ID        string         `yaml:"id"`
	Message   string         `yaml:"message"`
	Category  string         `yaml:"category"`
	Source    string         `yaml:"source"`
	Timestamp time.Time      `yaml:"timestamp"`
	Cause     string         `yaml:"cause,omitempty"`
	Data      map[string]any `yaml:"data,omitempty"`
}

// Records converts collected errors into their serializable form, preserving
// order.
func Records(errs []*BuildError) []Record {
	out := make([]Record, 0, len(errs))

	for _, e := range errs {
		r := Record{
			ID:        e.ID.String(),
			Message:   e.Message,
			Category:  e.Category.String(),
			Source:    e.Source,
			Timestamp: e.Timestamp,
			Data:      e.Data,
		}

		if e.Cause != nil {
			r.Cause = e.Cause.Error()
		}

		out = append(out, r)
	}

	return out
}
