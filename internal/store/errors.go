// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrPersistence wraps every failure to durably write a pending record.
	// It is surfaced to callers and never retried.
	ErrPersistence = errors.New("local persistence failed")

	// ErrCacheMiss is returned by [CacheStore.Get] when the key is absent or
	// its entry has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrRecordNotFound is returned when a queue operation targets an id that
	// was never enqueued (or was purged).
	ErrRecordNotFound = errors.New("pending record not found")

	// ErrKeyNotFound is returned by [StateStore.Get] and [Medium.Get] for
	// absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnknownMediumDriver is returned by [NewMedium] for unsupported
	// drivers.
	ErrUnknownMediumDriver = errors.New("unknown medium driver")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRows is returned when scanning column values during
	// row iteration fails.
	ErrScanningRows = errors.New("failed to scan rows")
)
