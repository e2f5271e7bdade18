// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import "errors"

var (
	// ErrTransient covers network failures, timeouts and 5xx answers. The
	// request may succeed later.
	ErrTransient = errors.New("backend temporarily unavailable")
	// ErrRejected is a 4xx answer: the backend refused the request itself.
	ErrRejected = errors.New("backend rejected request")
	// ErrUnauthorized is a 401 or 403 answer.
	ErrUnauthorized = errors.New("backend unauthorized")

	ErrNotConfigured      = errors.New("backend url is not configured")
	ErrCircuitOpen        = errors.New("backend circuit breaker is open")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrRealtimeNotJoined  = errors.New("realtime connection is not established")
	ErrEmptyTableName     = errors.New("table name is empty")
	ErrUnsupportedChannel = errors.New("unsupported realtime event")
)
