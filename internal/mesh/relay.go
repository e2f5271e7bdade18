// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package mesh relays emergency records between co-located devices through a
// shared key-value medium while the remote backend is unreachable.
//
// Each running [Relay] broadcasts its presence, discovers peers within range,
// asks them for their records and answers their requests in turn. Every entry
// it writes carries its own expiry, so devices never coordinate deletes.
package mesh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/metrics"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/internal/workers"
	"github.com/sndie3/LABAN/models"
)

// Config tunes a [Relay].
type Config struct {
	// RangeMeters is how far away a peer may be to be discovered.
	RangeMeters float64
	// NearbyMeters is how far away a relayed record may be to be accepted.
	NearbyMeters float64

	BroadcastInterval time.Duration
	DiscoveryInterval time.Duration
	PollInterval      time.Duration

	PresenceTTL time.Duration
	RequestTTL  time.Duration
	PushTTL     time.Duration

	// MaxLocalRecords bounds a data push to the newest records.
	MaxLocalRecords int
	// MaxReceivedRecords bounds the records held from peers. Zero means no
	// bound.
	MaxReceivedRecords int
}

// DefaultConfig returns the stock relay timings.
func DefaultConfig() Config {
	return Config{
		RangeMeters:        config.DefaultRangeMeters,
		NearbyMeters:       config.DefaultNearbyMeters,
		BroadcastInterval:  config.DefaultBroadcastInterval,
		DiscoveryInterval:  config.DefaultDiscoveryInterval,
		PollInterval:       config.DefaultPollInterval,
		PresenceTTL:        config.DefaultPresenceTTL,
		RequestTTL:         config.DefaultRequestTTL,
		PushTTL:            config.DefaultPushTTL,
		MaxLocalRecords:    config.DefaultMaxLocalRecords,
		MaxReceivedRecords: config.DefaultMaxReceivedRecords,
	}
}

// ConfigFrom maps the agent's mesh settings. Zero values fall back to
// [DefaultConfig].
func ConfigFrom(cfg config.Mesh) Config {
	out := DefaultConfig()
	if cfg.RangeMeters > 0 {
		out.RangeMeters = cfg.RangeMeters
	}
	if cfg.NearbyMeters > 0 {
		out.NearbyMeters = cfg.NearbyMeters
	}
	setPositive(&out.BroadcastInterval, cfg.BroadcastInterval)
	setPositive(&out.DiscoveryInterval, cfg.DiscoveryInterval)
	setPositive(&out.PollInterval, cfg.PollInterval)
	setPositive(&out.PresenceTTL, cfg.PresenceTTL)
	setPositive(&out.RequestTTL, cfg.RequestTTL)
	setPositive(&out.PushTTL, cfg.PushTTL)
	if cfg.MaxLocalRecords > 0 {
		out.MaxLocalRecords = cfg.MaxLocalRecords
	}
	if cfg.MaxReceivedRecords > 0 {
		out.MaxReceivedRecords = cfg.MaxReceivedRecords
	}
	return out
}

func setPositive(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Option customises a [Relay].
type Option func(*Relay)

// WithClock sets the clock used for envelope timestamps and expiry.
func WithClock(clock utils.Clock) Option {
	return func(r *Relay) { r.clock = clock }
}

// WithIDGenerator sets the generator for ids of locally stored records.
func WithIDGenerator(ids utils.IDGenerator) Option {
	return func(r *Relay) { r.ids = ids }
}

// Relay is one device's participant in the local mesh. Construct one per
// device with [NewRelay] and pass it to whoever needs it.
type Relay struct {
	deviceID string
	medium   store.Medium
	cfg      Config
	clock    utils.Clock
	ids      utils.IDGenerator
	logger   *logger.Logger

	broadcaster *workers.Periodic
	discoverer  *workers.Periodic
	poller      *workers.Periodic

	mu       sync.Mutex
	running  bool
	location models.Location
	peers    []models.MeshPeer
	local    map[string]models.MeshRecord
	received map[string]models.MeshRecord
	// evictedBefore is the creation time of the newest record evicted from
	// received. Older records are not accepted again.
	evictedBefore time.Time

	listeners *listenerSet
}

// NewRelay creates a stopped relay for deviceID over medium.
func NewRelay(deviceID string, medium store.Medium, cfg Config, log *logger.Logger, opts ...Option) (*Relay, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	log = log.Component("mesh")
	log = log.WithDevice(deviceID)

	r := &Relay{
		deviceID: deviceID,
		medium:   medium,
		cfg:      cfg,
		clock:    utils.SystemClock{},
		ids:      utils.NewUUIDGenerator(),
		logger:   log,
		local:    make(map[string]models.MeshRecord),
		received: make(map[string]models.MeshRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.listeners = newListenerSet(log)

	r.broadcaster = workers.NewPeriodic("mesh-broadcast", cfg.BroadcastInterval, r.broadcast, log, workers.WithImmediateRun())
	r.discoverer = workers.NewPeriodic("mesh-discovery", cfg.DiscoveryInterval, r.discover, log)
	r.poller = workers.NewPeriodic("mesh-poll", cfg.PollInterval, r.poll, log)

	return r, nil
}

// DeviceID returns the id this relay announces.
func (r *Relay) DeviceID() string { return r.deviceID }

// Start begins broadcasting from location and launches discovery and
// polling. Starting a running relay only updates its location.
func (r *Relay) Start(ctx context.Context, location models.Location) {
	r.mu.Lock()
	r.location = location
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.broadcaster.Start(ctx)
	r.discoverer.Start(ctx)
	r.poller.Start(ctx)

	metrics.SetMeshRunning(true)
	r.logger.Info().Str("func", "Relay.Start").
		Float64("latitude", location.Latitude).
		Float64("longitude", location.Longitude).
		Msg("mesh relay started")
}

// Stop halts all relay activity and waits for runs in progress. Discovered
// peers are forgotten; held records are kept.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.broadcaster.Stop()
	r.discoverer.Stop()
	r.poller.Stop()

	r.mu.Lock()
	r.peers = nil
	r.mu.Unlock()

	metrics.SetMeshRunning(false)
	metrics.SetMeshPeers(0)
	r.logger.Info().Str("func", "Relay.Stop").Msg("mesh relay stopped")
}

// Running reports whether the relay is started.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// UpdateLocation moves the device. The next broadcast and discovery use it.
func (r *Relay) UpdateLocation(location models.Location) {
	r.mu.Lock()
	r.location = location
	r.mu.Unlock()
}

// Location returns the device's last known location.
func (r *Relay) Location() models.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// AddListener registers fn for records received from peers.
func (r *Relay) AddListener(fn Listener) ListenerID {
	return r.listeners.add(fn)
}

// RemoveListener unregisters a listener. Unknown ids are ignored.
func (r *Relay) RemoveListener(id ListenerID) {
	r.listeners.remove(id)
}

// StoreLocalRequest keeps rec as one of this device's own records and, while
// running, shares the local set right away. The record is kept even when
// sharing fails.
func (r *Relay) StoreLocalRequest(ctx context.Context, rec models.MeshRecord) (models.MeshRecord, error) {
	if rec.Message == "" {
		return models.MeshRecord{}, ErrEmptyMessage
	}
	if rec.ID == "" {
		rec.ID = r.ids.Generate()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now()
	}
	rec.DeviceID = r.deviceID

	r.mu.Lock()
	r.local[rec.ID] = rec
	running := r.running
	r.mu.Unlock()

	if !running {
		return rec, nil
	}
	if err := r.sharePush(ctx); err != nil {
		return rec, fmt.Errorf("share record %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Records returns every record the device holds, its own and those received
// from peers, newest first.
func (r *Relay) Records() []models.MeshRecord {
	r.mu.Lock()
	out := make([]models.MeshRecord, 0, len(r.local)+len(r.received))
	for _, rec := range r.local {
		out = append(out, rec)
	}
	for id, rec := range r.received {
		if _, own := r.local[id]; !own {
			out = append(out, rec)
		}
	}
	r.mu.Unlock()

	sortNewestFirst(out)
	return out
}

// Peers returns the devices found by the latest discovery cycle, nearest
// first.
func (r *Relay) Peers() []models.MeshPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MeshPeer, len(r.peers))
	copy(out, r.peers)
	return out
}

// Status summarises the relay for the status API.
func (r *Relay) Status() models.MeshStatus {
	r.mu.Lock()
	running := r.running
	peers := len(r.peers)
	r.mu.Unlock()

	return models.MeshStatus{
		DeviceID: r.deviceID,
		Running:  running,
		Peers:    peers,
		Records:  len(r.Records()),
	}
}

// outgoing returns the newest local records, bounded by MaxLocalRecords.
func (r *Relay) outgoing() []models.MeshRecord {
	r.mu.Lock()
	out := make([]models.MeshRecord, 0, len(r.local))
	for _, rec := range r.local {
		out = append(out, rec)
	}
	r.mu.Unlock()

	sortNewestFirst(out)
	if limit := r.cfg.MaxLocalRecords; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(recs []models.MeshRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
