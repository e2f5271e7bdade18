// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
)

const stateWriteTimeout = 5 * time.Second

// resolveDeviceID returns the configured id, the one saved by a previous run
// or a freshly generated one, in that order. The result is saved so the
// device keeps its identity across restarts.
func resolveDeviceID(ctx context.Context, configured string, state store.StateStore, ids utils.IDGenerator) (string, error) {
	if configured != "" {
		if err := state.Set(ctx, store.StateDeviceID, configured); err != nil {
			return "", fmt.Errorf("save device id: %w", err)
		}
		return configured, nil
	}

	saved, err := state.Get(ctx, store.StateDeviceID)
	if err == nil && saved != "" {
		return saved, nil
	}
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := ids.Generate()
	if err = state.Set(ctx, store.StateDeviceID, id); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

// resolveLocation returns the last saved location, or fallback when none was
// saved or it cannot be read.
func resolveLocation(ctx context.Context, state store.StateStore, fallback models.Location, log *logger.Logger) models.Location {
	raw, err := state.Get(ctx, store.StateLastLocation)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			log.Err(err).Str("func", "resolveLocation").Msg("failed to read last location")
		}
		return fallback
	}

	var loc models.Location
	if err = json.Unmarshal([]byte(raw), &loc); err != nil {
		log.Err(err).Str("func", "resolveLocation").Msg("saved location is malformed")
		return fallback
	}
	return loc
}

// locationSaver persists every location it is given.
func locationSaver(state store.StateStore, log *logger.Logger) func(models.Location) {
	return func(loc models.Location) {
		raw, err := json.Marshal(loc)
		if err != nil {
			log.Err(err).Str("func", "locationSaver").Msg("failed to encode location")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
		defer cancel()
		if err = state.Set(ctx, store.StateLastLocation, string(raw)); err != nil {
			log.Err(err).Str("func", "locationSaver").Msg("failed to save location")
		}
	}
}
