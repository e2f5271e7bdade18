// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/service"
	"github.com/sndie3/LABAN/internal/validators"
	"github.com/sndie3/LABAN/models"
)

type Handler struct {
	sync  service.Coordinator
	relay Relay
	build models.BuildInfo

	validator validators.Validator

	// onLocation is called after the device location changes.
	onLocation func(models.Location)

	logger *logger.Logger
}

// HandlerOption customises a [Handler].
type HandlerOption func(*Handler)

// WithLocationHook registers fn to run after PUT /api/mesh/location, e.g. to
// persist the location across restarts.
func WithLocationHook(fn func(models.Location)) HandlerOption {
	return func(h *Handler) { h.onLocation = fn }
}

// NewHandler creates the status API handler. relay may be nil when the mesh
// is disabled; mesh routes then answer 503.
func NewHandler(sync service.Coordinator, relay Relay, build models.BuildInfo, logger *logger.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		sync:      sync,
		relay:     relay,
		build:     build,
		validator: validators.NewRequestValidator(),
		logger:    logger.Component("status-api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	logger.Info().Msg("http handler created")
	return h
}
