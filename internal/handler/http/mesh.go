// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"net/http"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
)

func (h *Handler) requireRelay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.relay == nil {
			utils.WriteError(w, ErrMeshDisabled, http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) getPeers(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.relay.Peers(), http.StatusOK)
}

func (h *Handler) getMeshRecords(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.relay.Records(), http.StatusOK)
}

func (h *Handler) storeMeshRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var rec models.MeshRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		log.Err(err).Str("func", "*Handler.storeMeshRecord").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	if err := h.validator.Validate(r.Context(), rec); err != nil {
		utils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	stored, err := h.relay.StoreLocalRequest(r.Context(), rec)
	if err != nil && stored.ID == "" {
		log.Err(err).Str("func", "*Handler.storeMeshRecord").Msg("error storing mesh record")
		utils.WriteError(w, err, statusFromError(err))
		return
	}
	if err != nil {
		// Kept locally; the next answered request shares it.
		log.Warn().Err(err).Str("func", "*Handler.storeMeshRecord").Str("id", stored.ID).Msg("mesh record stored but not shared")
	}

	utils.WriteJSON(w, stored, http.StatusCreated)
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		log.Err(err).Str("func", "*Handler.updateLocation").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := h.validator.Validate(r.Context(), loc); err != nil {
		utils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	h.relay.UpdateLocation(loc)
	if h.onLocation != nil {
		h.onLocation(loc)
	}

	w.WriteHeader(http.StatusNoContent)
}
