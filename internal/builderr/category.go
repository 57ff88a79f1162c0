// Copyright (c) peforge authors 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package builderr

import "errors"

// Category classifies a build failure for programmatic handling. The category
// decides whether a failure may be retried and how the orchestrator reacts to
// it; see the retry and orchestrator packages for the policy per category.
type Category int

const (
	// CategoryUnspecified is the zero value, used when no better category fits.
	CategoryUnspecified Category = iota
	// CategoryValidation indicates bad caller input. Never retried.
	CategoryValidation
	// CategoryFileSystem indicates an I/O failure.
	CategoryFileSystem
	// CategoryNetwork indicates a failure fetching remote content.
	CategoryNetwork
	// CategoryConfiguration indicates bad settings. Never retried.
	CategoryConfiguration
	// CategoryOperationTimeout indicates exhausted retries or an exceeded wait budget.
	CategoryOperationTimeout
	// CategoryConcurrency indicates a lock acquisition or background job failure.
	CategoryConcurrency
)

const (
	categoryUnspecifiedStr      = "unspecified"
	categoryValidationStr       = "validation"
	categoryFileSystemStr       = "filesystem"
	categoryNetworkStr          = "network"
	categoryConfigurationStr    = "configuration"
	categoryOperationTimeoutStr = "operation-timeout"
	categoryConcurrencyStr      = "concurrency"
)

// ErrCategoryUnknown is returned when an unknown category string is parsed.
var ErrCategoryUnknown = errors.New("unknown error category")

// String returns the string representation of the Category.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return categoryValidationStr
	case CategoryFileSystem:
		return categoryFileSystemStr
	case CategoryNetwork:
		return categoryNetworkStr
	case CategoryConfiguration:
		return categoryConfigurationStr
	case CategoryOperationTimeout:
		return categoryOperationTimeoutStr
	case CategoryConcurrency:
		return categoryConcurrencyStr
	case CategoryUnspecified:
		return categoryUnspecifiedStr
	default:
		return categoryUnspecifiedStr
	}
}

// NewCategory creates a Category from a string.
func NewCategory(s string) (Category, error) {
	switch s {
	case categoryValidationStr:
		return CategoryValidation, nil
	case categoryFileSystemStr:
		return CategoryFileSystem, nil
	case categoryNetworkStr:
		return CategoryNetwork, nil
	case categoryConfigurationStr:
		return CategoryConfiguration, nil
	case categoryOperationTimeoutStr:
		return CategoryOperationTimeout, nil
	case categoryConcurrencyStr:
		return CategoryConcurrency, nil
	case categoryUnspecifiedStr:
		return CategoryUnspecified, nil
	default:
		return Category(-1), ErrCategoryUnknown
	}
}
