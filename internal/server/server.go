// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import (
	"net/http"

	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
)

// NewServer creates the status API server. It fails when no listen address
// is configured.
func NewServer(handler http.Handler, cfg config.Status, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")

	if cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	return newHTTPServer(handler, cfg.HTTPAddress, logger.Component("server")), nil
}
