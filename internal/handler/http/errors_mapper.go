// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"errors"
	"net/http"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/internal/mesh"
	"github.com/sndie3/LABAN/internal/service"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/validators"
)

var errorStatusMap = map[error]int{
	ErrInvalidJSON:       http.StatusBadRequest,
	ErrInvalidEntityType: http.StatusBadRequest,
	ErrInvalidLimit:      http.StatusBadRequest,
	ErrInvalidOrder:      http.StatusBadRequest,
	ErrInvalidTTL:        http.StatusBadRequest,
	ErrMeshDisabled:      http.StatusServiceUnavailable,

	service.ErrEmptyEntityType: http.StatusBadRequest,
	service.ErrEmptyPayload:    http.StatusBadRequest,
	service.ErrNoOfflineData:   http.StatusServiceUnavailable,
	service.ErrOffline:         http.StatusServiceUnavailable,

	adapter.ErrRejected:          http.StatusUnprocessableEntity,
	adapter.ErrUnauthorized:      http.StatusBadGateway,
	adapter.ErrMalformedResponse: http.StatusBadGateway,

	mesh.ErrEmptyMessage: http.StatusBadRequest,

	validators.ErrInvalidLatitude:      http.StatusBadRequest,
	validators.ErrInvalidLongitude:     http.StatusBadRequest,
	validators.ErrEmptyMessage:         http.StatusBadRequest,
	validators.ErrInvalidAccessVehicle: http.StatusBadRequest,
	validators.ErrInvalidColumn:        http.StatusBadRequest,

	store.ErrRecordNotFound: http.StatusNotFound,
	store.ErrPersistence:    http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
