// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "errors"

var (
	// ErrNoOfflineData means the backend could not be asked and nothing is
	// cached for the query. It is distinct from an empty result.
	ErrNoOfflineData = errors.New("no offline data available")
	// ErrOffline is returned by operations that need the backend.
	ErrOffline = errors.New("backend is offline")

	ErrEmptyEntityType = errors.New("entity type is empty")
	ErrEmptyPayload    = errors.New("payload is empty")
)
