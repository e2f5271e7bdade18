// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package mesh

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sndie3/LABAN/internal/metrics"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
)

// broadcast publishes this device's presence.
func (r *Relay) broadcast(ctx context.Context) {
	now := r.clock.Now()
	presence := models.Presence{
		DeviceID:    r.deviceID,
		Location:    r.Location(),
		BroadcastAt: now,
		RangeMeters: r.cfg.RangeMeters,
	}

	raw, err := newEnvelope(r.deviceID, "", models.KindPresence, presence, now, r.cfg.PresenceTTL)
	if err == nil {
		err = r.medium.Put(ctx, presenceKey(r.deviceID), raw)
	}
	if err != nil {
		metrics.RecordMeshError("broadcast")
		r.logger.Err(err).Str("func", "Relay.broadcast").Msg("could not publish presence")
		return
	}
	metrics.RecordMeshEnvelope(string(models.KindPresence))
}

// discover rebuilds the peer list from live presences within range and asks
// each peer for its records.
func (r *Relay) discover(ctx context.Context) {
	keys, err := r.medium.ListKeys(ctx, presencePrefix)
	if err != nil {
		metrics.RecordMeshError("discover")
		r.logger.Err(err).Str("func", "Relay.discover").Msg("could not list presences")
		return
	}

	now := r.clock.Now()
	here := r.Location()
	own := presenceKey(r.deviceID)

	peers := make([]models.MeshPeer, 0, len(keys))
	for _, key := range keys {
		if key == own {
			continue
		}
		env, ok := r.read(ctx, key, models.KindPresence, now)
		if !ok {
			continue
		}
		presence, err := decodePayload[models.Presence](env)
		if err != nil {
			r.skip(key, "discover", err)
			continue
		}

		distance := utils.Distance(here, presence.Location)
		if distance > r.cfg.RangeMeters {
			continue
		}
		peers = append(peers, models.MeshPeer{
			DeviceID:       env.From,
			Location:       presence.Location,
			LastSeenAt:     env.SentAt,
			DistanceMeters: distance,
		})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].DistanceMeters < peers[j].DistanceMeters })

	r.mu.Lock()
	r.peers = peers
	r.mu.Unlock()
	metrics.SetMeshPeers(len(peers))

	if len(peers) > 0 {
		r.logger.Debug().Str("func", "Relay.discover").Int("peers", len(peers)).Msg("nearby devices discovered")
	}

	for _, peer := range peers {
		raw, err := newEnvelope(r.deviceID, peer.DeviceID, models.KindDataRequest, nil, now, r.cfg.RequestTTL)
		if err == nil {
			err = r.medium.Put(ctx, requestKey(r.deviceID, peer.DeviceID), raw)
		}
		if err != nil {
			metrics.RecordMeshError("request")
			r.logger.Err(err).Str("func", "Relay.discover").Str("peer", peer.DeviceID).Msg("could not send data request")
			continue
		}
		metrics.RecordMeshEnvelope(string(models.KindDataRequest))
	}
}

// poll answers requests addressed to this device and takes in pushes from
// other devices.
func (r *Relay) poll(ctx context.Context) {
	r.answerRequests(ctx)
	r.collectPushes(ctx)
}

func (r *Relay) answerRequests(ctx context.Context) {
	keys, err := r.medium.ListKeys(ctx, requestPrefix)
	if err != nil {
		metrics.RecordMeshError("poll")
		r.logger.Err(err).Str("func", "Relay.answerRequests").Msg("could not list data requests")
		return
	}

	now := r.clock.Now()
	answered := false
	for _, key := range keys {
		addressed := requestAddressedTo(key, r.deviceID)
		env, ok := r.readOrCollect(ctx, key, models.KindDataRequest, now, addressed)
		if !ok || !addressed || env.To != r.deviceID {
			continue
		}

		if !answered {
			if err = r.sharePush(ctx); err != nil {
				metrics.RecordMeshError("push")
				r.logger.Err(err).Str("func", "Relay.answerRequests").Str("peer", env.From).Msg("could not answer data request")
				continue
			}
			answered = true
		}
		r.delete(ctx, key)
	}
}

func (r *Relay) collectPushes(ctx context.Context) {
	keys, err := r.medium.ListKeys(ctx, pushPrefix)
	if err != nil {
		metrics.RecordMeshError("poll")
		r.logger.Err(err).Str("func", "Relay.collectPushes").Msg("could not list data pushes")
		return
	}

	now := r.clock.Now()
	own := pushKey(r.deviceID)
	for _, key := range keys {
		if key == own {
			continue
		}
		env, ok := r.read(ctx, key, models.KindDataPush, now)
		if !ok {
			continue
		}
		push, err := decodePayload[models.DataPush](env)
		if err != nil {
			r.skip(key, "poll", err)
			continue
		}

		fresh := r.accept(push.Records)
		if len(fresh) == 0 {
			continue
		}
		r.logger.Info().Str("func", "Relay.collectPushes").Str("peer", env.From).Int("records", len(fresh)).Msg("received nearby records")
		metrics.RecordMeshDelivered(len(fresh))
		r.listeners.notify(fresh)
	}
}

// accept keeps the located records near this device that it does not hold
// yet and returns them. Records no newer than the last eviction are dropped
// so an evicted record is never delivered twice.
func (r *Relay) accept(recs []models.MeshRecord) []models.MeshRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make([]models.MeshRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" || !rec.Located() {
			continue
		}
		if !r.evictedBefore.IsZero() && !rec.CreatedAt.After(r.evictedBefore) {
			continue
		}
		if utils.Distance(r.location, rec.Location()) > r.cfg.NearbyMeters {
			continue
		}
		if _, held := r.local[rec.ID]; held {
			continue
		}
		if _, held := r.received[rec.ID]; held {
			continue
		}
		r.received[rec.ID] = rec
		fresh = append(fresh, rec)
	}
	r.evictLocked()
	return fresh
}

// evictLocked drops the oldest received records beyond MaxReceivedRecords.
func (r *Relay) evictLocked() {
	limit := r.cfg.MaxReceivedRecords
	if limit <= 0 || len(r.received) <= limit {
		return
	}

	held := make([]models.MeshRecord, 0, len(r.received))
	for _, rec := range r.received {
		held = append(held, rec)
	}
	sortNewestFirst(held)

	for _, rec := range held[limit:] {
		delete(r.received, rec.ID)
		if rec.CreatedAt.After(r.evictedBefore) {
			r.evictedBefore = rec.CreatedAt
		}
	}
	r.logger.Debug().Str("func", "Relay.evictLocked").Int("evicted", len(held)-limit).Msg("dropped oldest received records")
}

// sharePush publishes the local record set. Nothing is written while the
// device holds no records of its own.
func (r *Relay) sharePush(ctx context.Context) error {
	recs := r.outgoing()
	if len(recs) == 0 {
		return nil
	}

	raw, err := newEnvelope(r.deviceID, "", models.KindDataPush, models.DataPush{Records: recs}, r.clock.Now(), r.cfg.PushTTL)
	if err != nil {
		return err
	}
	if err = r.medium.Put(ctx, pushKey(r.deviceID), raw); err != nil {
		return err
	}
	metrics.RecordMeshEnvelope(string(models.KindDataPush))
	return nil
}

// read fetches and decodes key, deleting it when expired.
func (r *Relay) read(ctx context.Context, key string, kind models.EnvelopeKind, now time.Time) (models.RelayEnvelope, bool) {
	return r.readOrCollect(ctx, key, kind, now, true)
}

// readOrCollect is read for entries this device would act on. For others,
// decode is still needed to find expired ones but parse failures stay quiet.
func (r *Relay) readOrCollect(ctx context.Context, key string, kind models.EnvelopeKind, now time.Time, loud bool) (models.RelayEnvelope, bool) {
	raw, err := r.medium.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.RelayEnvelope{}, false
	}
	if err != nil {
		metrics.RecordMeshError("read")
		r.logger.Err(err).Str("func", "Relay.read").Str("key", key).Msg("could not read medium entry")
		return models.RelayEnvelope{}, false
	}

	env, err := decodeEnvelope(raw, kind)
	if err != nil {
		if loud {
			r.skip(key, "decode", err)
		}
		return models.RelayEnvelope{}, false
	}
	if env.Expired(now) {
		r.delete(ctx, key)
		return models.RelayEnvelope{}, false
	}
	return env, true
}

func (r *Relay) delete(ctx context.Context, key string) {
	if err := r.medium.Delete(ctx, key); err != nil {
		metrics.RecordMeshError("delete")
		r.logger.Warn().Err(err).Str("func", "Relay.delete").Str("key", key).Msg("could not delete medium entry")
	}
}

func (r *Relay) skip(key, stage string, err error) {
	metrics.RecordMeshError(stage)
	r.logger.Warn().Err(err).Str("func", "Relay.skip").Str("key", key).Msg("skipping medium entry")
}
