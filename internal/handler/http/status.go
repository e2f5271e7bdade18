// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
)

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.build, http.StatusOK)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	status, err := h.sync.Status(r.Context())
	if err != nil {
		log.Err(err).Str("func", "*Handler.getStatus").Msg("error reading sync status")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	if h.relay != nil {
		mesh := h.relay.Status()
		status.Mesh = &mesh
	}

	utils.WriteJSON(w, status, http.StatusOK)
}

func (h *Handler) forceSync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	report, err := h.sync.ForceSync(r.Context())
	if err != nil {
		log.Err(err).Str("func", "*Handler.forceSync").Msg("forced sync failed")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	utils.WriteJSON(w, report, http.StatusOK)
}
