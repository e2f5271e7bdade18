// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

var (
	ErrInvalidJSON       = errors.New("invalid JSON was passed")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidLimit      = errors.New("limit must be a positive integer")
	ErrInvalidOrder      = errors.New("order must look like column.asc or column.desc")
	ErrInvalidTTL        = errors.New("ttl must be a positive duration")
	ErrMeshDisabled      = errors.New("mesh relay is disabled")
	ErrRouteNotFound     = errors.New("route not found")
	ErrMethodNotAllowed  = errors.New("method not allowed")
)
