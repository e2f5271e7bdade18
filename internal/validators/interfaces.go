// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks values that arrive from outside the agent before
// they reach the relay or the sync coordinator.
//
// Core concepts:
//   - Validator: generic interface to validate a value, optionally scoped to
//     a subset of its fields.
//
// Usage patterns:
//  1. Inject a Validator into the status API handler.
//  2. Call Validate with the decoded value and, when only part of it matters,
//     the Field* names to check.
package validators

import "context"

// Validator defines a generic validation interface for arbitrary input values.
type Validator interface {

	// Validate validates the provided input and optionally
	// restricts validation to specific named fields.
	Validate(context.Context, any, ...string) error
}
