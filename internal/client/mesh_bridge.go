// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/mesh"
	"github.com/sndie3/LABAN/models"
)

const shareTimeout = 5 * time.Second

// meshBridge runs the relay while the backend is unreachable and hands it
// the help requests queued in the meantime.
type meshBridge struct {
	relay  *mesh.Relay
	online func() bool
	logger *logger.Logger

	mu  sync.Mutex
	ctx context.Context
}

func newMeshBridge(relay *mesh.Relay, online func() bool, log *logger.Logger) *meshBridge {
	return &meshBridge{
		relay:  relay,
		online: online,
		logger: log.Component("mesh-bridge"),
		ctx:    context.Background(),
	}
}

// Start records ctx for later relay starts and starts the relay right away
// when the agent comes up offline.
func (b *meshBridge) Start(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if !b.online() {
		b.logger.Info().Str("func", "meshBridge.Start").Msg("starting offline, mesh relay enabled")
		b.relay.Start(ctx, b.relay.Location())
	}
}

func (b *meshBridge) Stop() {
	b.relay.Stop()
}

func (b *meshBridge) runContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *meshBridge) onConnectionChange(ev models.ConnectionEvent) {
	switch ev.Type {
	case models.ConnectionLost:
		b.logger.Info().Str("func", "meshBridge.onConnectionChange").Msg("backend lost, mesh relay enabled")
		b.relay.Start(b.runContext(), b.relay.Location())
	case models.ConnectionRestored:
		b.logger.Info().Str("func", "meshBridge.onConnectionChange").Msg("backend restored, mesh relay disabled")
		b.relay.Stop()
	}
}

func (b *meshBridge) onQueued(rec models.PendingRecord) {
	if rec.EntityType != models.HelpRequest {
		return
	}

	meshRec, err := meshRecordFromPayload(rec)
	if err != nil {
		b.logger.Err(err).Str("func", "meshBridge.onQueued").Str("id", rec.ID).Msg("failed to read queued help request")
		return
	}

	ctx, cancel := context.WithTimeout(b.runContext(), shareTimeout)
	defer cancel()

	if _, err = b.relay.StoreLocalRequest(ctx, meshRec); err != nil {
		if errors.Is(err, mesh.ErrEmptyMessage) {
			b.logger.Debug().Str("func", "meshBridge.onQueued").Str("id", rec.ID).Msg("help request has no message, not shared")
			return
		}
		b.logger.Err(err).Str("func", "meshBridge.onQueued").Str("id", rec.ID).Msg("failed to share help request")
	}
}

var meshRecordFields = []string{
	"user_name", "message", "role", "latitude", "longitude",
	"region", "status", "image_url", "access_vehicles",
}

// meshRecordFromPayload picks the relayed fields out of a queued help
// request. The provisional id is kept so peers and the queue agree on it.
func meshRecordFromPayload(rec models.PendingRecord) (models.MeshRecord, error) {
	raw, err := json.Marshal(rec.Payload)
	if err != nil {
		return models.MeshRecord{}, err
	}

	f := gjson.GetManyBytes(raw, meshRecordFields...)
	out := models.MeshRecord{
		ID:        rec.ProvisionalID(),
		UserName:  f[0].String(),
		Message:   f[1].String(),
		Role:      f[2].String(),
		Latitude:  f[3].Float(),
		Longitude: f[4].Float(),
		Region:    f[5].String(),
		Status:    f[6].String(),
		ImageURL:  f[7].String(),
		CreatedAt: rec.CreatedAt,
	}
	for _, v := range f[8].Array() {
		out.AccessVehicles = append(out.AccessVehicles, v.String())
	}
	return out, nil
}
