// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/internal/validators"
	"github.com/sndie3/LABAN/models"
)

var entityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

// Query parameters with a fixed meaning. Any other parameter is an equality
// filter on the column of the same name.
const (
	paramSelect = "select"
	paramOrder  = "order"
	paramLimit  = "limit"
	paramTTL    = "ttl"
)

// resolveResponse is the body of GET /api/ids/{id}. A confirmed record
// without remote_id reached the backend, which did not return the stored row.
type resolveResponse struct {
	ID        string `json:"id"`
	RemoteID  string `json:"remote_id,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

func (h *Handler) submitRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	entityType, err := entityTypeParam(r)
	if err != nil {
		utils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	var payload models.Payload
	if err = json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Err(err).Str("func", "*Handler.submitRecord").Msg("Invalid JSON was passed")
		utils.WriteError(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	res, err := h.sync.Submit(r.Context(), entityType, payload)
	if err != nil {
		log.Err(err).Str("func", "*Handler.submitRecord").Str("entity_type", entityType).Msg("error submitting record")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	status := http.StatusCreated
	if res.Provisional {
		status = http.StatusAccepted
	}
	utils.WriteJSON(w, res, status)
}

func (h *Handler) queryRecords(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	entityType, err := entityTypeParam(r)
	if err != nil {
		utils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	filter, err := filterFromQuery(r.URL.Query())
	if err == nil {
		err = h.validator.Validate(r.Context(), filter, validators.FieldSelect, validators.FieldEq, validators.FieldOrder)
	}
	if err != nil {
		utils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	res, err := h.sync.Query(r.Context(), entityType, filter)
	if err != nil {
		log.Err(err).Str("func", "*Handler.queryRecords").Str("entity_type", entityType).Msg("error querying records")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	utils.WriteJSON(w, res, http.StatusOK)
}

func (h *Handler) resolveID(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	id := chi.URLParam(r, "id")

	remoteID, confirmed, err := h.sync.ResolveID(r.Context(), id)
	if err != nil {
		log.Err(err).Str("func", "*Handler.resolveID").Str("id", id).Msg("error resolving id")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	utils.WriteJSON(w, resolveResponse{ID: id, RemoteID: remoteID, Confirmed: confirmed}, http.StatusOK)
}

func entityTypeParam(r *http.Request) (models.EntityType, error) {
	entityType := chi.URLParam(r, "entityType")
	if !entityTypePattern.MatchString(entityType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, entityType)
	}
	return entityType, nil
}

// filterFromQuery reads a filter from PostgREST-like query parameters:
// ?select=id,message&region=NCR&order=created_at.desc&limit=20&ttl=1h
func filterFromQuery(q url.Values) (models.FilterSpec, error) {
	filter := models.FilterSpec{Select: q.Get(paramSelect)}

	if v := q.Get(paramLimit); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return models.FilterSpec{}, ErrInvalidLimit
		}
		filter.Limit = limit
	}

	if v := q.Get(paramOrder); v != "" {
		column, direction, ok := strings.Cut(v, ".")
		if !ok || column == "" || (direction != "asc" && direction != "desc") {
			return models.FilterSpec{}, ErrInvalidOrder
		}
		filter.Order = &models.Order{Column: column, Ascending: direction == "asc"}
	}

	if v := q.Get(paramTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return models.FilterSpec{}, ErrInvalidTTL
		}
		filter.TTL = ttl
	}

	for column, values := range q {
		switch column {
		case paramSelect, paramOrder, paramLimit, paramTTL:
			continue
		}
		if len(values) == 0 {
			continue
		}
		if filter.Eq == nil {
			filter.Eq = make(map[string]string)
		}
		filter.Eq[column] = values[0]
	}

	return filter, nil
}
