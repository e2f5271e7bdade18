// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/metrics"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
	"golang.org/x/time/rate"
)

// DefaultCacheTTL is how long query results and confirmed records stay in the
// offline cache unless a filter says otherwise.
const DefaultCacheTTL = 24 * time.Hour

// CoordinatorConfig tunes a [SyncCoordinator].
type CoordinatorConfig struct {
	// DefaultTTL applies to cached results whose filter carries no TTL.
	DefaultTTL time.Duration
	// DrainRate caps queued submissions per second during a drain.
	DrainRate float64
	// DrainBurst is the limiter burst. Defaults to 1.
	DrainBurst int
}

// SyncCoordinator routes writes and reads to the remote backend while
// online and to the local queue and cache while offline. It follows a
// [Connectivity] signal and drains the queue once per offline to online
// transition.
//
// remote may be nil, in which case the coordinator is permanently offline.
type SyncCoordinator struct {
	remote adapter.RemoteBackend
	queue  store.PendingQueue
	cache  store.CacheStore
	conn   Connectivity
	clock  utils.Clock
	cfg    CoordinatorConfig

	limiter *rate.Limiter
	logger  *logger.Logger

	// drainMu serialises drains so a record is never submitted twice.
	drainMu sync.Mutex

	mu          sync.Mutex
	started     bool
	lastOnline  bool
	lastDrain   *models.DrainReport
	unsubscribe func()
	runCtx      context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	onQueued    func(models.PendingRecord)

	events *eventBus
	live   *liveRegistry
	watch  *watchRegistry
}

// NewSyncCoordinator creates an idle coordinator. Call Start to follow the
// connectivity signal.
func NewSyncCoordinator(remote adapter.RemoteBackend, queue store.PendingQueue, cache store.CacheStore,
	conn Connectivity, clock utils.Clock, cfg CoordinatorConfig, log *logger.Logger) *SyncCoordinator {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultCacheTTL
	}
	if cfg.DrainBurst <= 0 {
		cfg.DrainBurst = 1
	}
	limit := rate.Inf
	if cfg.DrainRate > 0 {
		limit = rate.Limit(cfg.DrainRate)
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}

	log = log.Component("sync")
	return &SyncCoordinator{
		remote:  remote,
		queue:   queue,
		cache:   cache,
		conn:    conn,
		clock:   clock,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.DrainBurst),
		logger:  log,
		events:  newEventBus(log),
		live:    newLiveRegistry(),
		watch:   newWatchRegistry(),
	}
}

// Start subscribes to the connectivity signal. When the backend is already
// reachable, whatever a previous run left in the queue is drained right away.
func (c *SyncCoordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.lastOnline = c.online()
	startOnline := c.lastOnline
	c.mu.Unlock()

	metrics.SetOnline(startOnline)
	c.refreshPendingGauge(ctx)

	unsubscribe := c.conn.Subscribe(c.handleSignal)
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	if startOnline {
		c.drainAsync()
	}
}

// Stop unsubscribes from the signal and waits for a drain in progress.
func (c *SyncCoordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	unsubscribe := c.unsubscribe
	cancel := c.cancel
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	cancel()
	c.wg.Wait()
}

// OnQueued registers fn to be called with every record accepted into the
// pending queue by Submit.
func (c *SyncCoordinator) OnQueued(fn func(models.PendingRecord)) {
	c.mu.Lock()
	c.onQueued = fn
	c.mu.Unlock()
}

// OnConnectionChange registers fn for connection-lost, connection-restored
// and sync-complete events.
func (c *SyncCoordinator) OnConnectionChange(fn func(models.ConnectionEvent)) (unsubscribe func()) {
	return c.events.subscribe(fn)
}

func (c *SyncCoordinator) online() bool {
	return c.remote != nil && c.conn.IsOnline()
}

// handleSignal turns raw signal fires into transitions. Fires that repeat
// the last state are ignored. Without a backend the coordinator stays
// offline whatever the signal says.
func (c *SyncCoordinator) handleSignal(online bool) {
	online = online && c.remote != nil

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	was := c.lastOnline
	c.lastOnline = online
	ctx := c.runCtx
	c.mu.Unlock()

	if was == online {
		return
	}

	metrics.SetOnline(online)
	metrics.RecordTransition(online)

	if !online {
		c.logger.Info().Str("func", "SyncCoordinator.handleSignal").Msg("connection lost, working offline")
		c.live.downgradeAll(ctx)
		c.events.emit(models.ConnectionEvent{Type: models.ConnectionLost, At: c.clock.Now()})
		return
	}

	c.logger.Info().Str("func", "SyncCoordinator.handleSignal").Msg("connection restored")
	c.events.emit(models.ConnectionEvent{Type: models.ConnectionRestored, At: c.clock.Now()})
	c.drainAsync()
}

// drainAsync runs the reconnect work off the signal goroutine so other
// subscribers are not held up by a long drain.
func (c *SyncCoordinator) drainAsync() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	ctx := c.runCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.live.upgradeAll(ctx, c)
		if _, err := c.OnReconnect(ctx); err != nil {
			c.logger.Err(err).Str("func", "SyncCoordinator.drainAsync").Msg("reconnect drain failed")
		}
	}()
}

// Submit writes payload as a new entityType record. While online the
// backend insert is awaited and its confirmed row returned. When offline, or
// when the backend cannot be reached, the record is queued and a provisional
// result returned. A record the backend refuses is not queued.
func (c *SyncCoordinator) Submit(ctx context.Context, entityType models.EntityType, payload models.Payload) (models.SubmitResult, error) {
	if entityType == "" {
		return models.SubmitResult{}, ErrEmptyEntityType
	}
	if len(payload) == 0 {
		return models.SubmitResult{}, ErrEmptyPayload
	}

	log := c.logger.With().Str("entity_type", entityType).Logger()

	if c.online() {
		record, err := c.remote.Insert(ctx, models.TableFor(entityType), payload)
		if err == nil {
			c.cacheConfirmed(ctx, entityType, record)
			metrics.RecordSubmit(entityType, metrics.SubmitRemote)
			return models.SubmitResult{Record: record, ID: record.ID()}, nil
		}
		if !shouldQueue(err) {
			metrics.RecordSubmit(entityType, metrics.SubmitRejected)
			return models.SubmitResult{}, fmt.Errorf("submit %s: %w", entityType, err)
		}
		log.Warn().Err(err).Str("func", "SyncCoordinator.Submit").Msg("remote insert failed, queueing locally")
	}

	pending, err := c.queue.Enqueue(ctx, entityType, payload)
	if err != nil {
		metrics.RecordSubmit(entityType, metrics.SubmitFailed)
		return models.SubmitResult{}, fmt.Errorf("queue %s: %w", entityType, err)
	}
	metrics.RecordSubmit(entityType, metrics.SubmitQueued)
	c.refreshPendingGauge(ctx)

	log.Info().Str("func", "SyncCoordinator.Submit").Str("local_id", pending.ID).Msg("record queued for sync")

	c.mu.Lock()
	onQueued := c.onQueued
	c.mu.Unlock()
	if onQueued != nil {
		onQueued(pending)
	}

	record := payload.Clone()
	record["id"] = pending.ProvisionalID()
	record["offline"] = true

	return models.SubmitResult{
		Record:      record,
		ID:          pending.ProvisionalID(),
		LocalID:     pending.ID,
		Provisional: true,
	}, nil
}

// Query reads entityType rows matching filter. A successful remote read
// refreshes the cache; otherwise the cached result is served, or
// [ErrNoOfflineData] when there is none.
func (c *SyncCoordinator) Query(ctx context.Context, entityType models.EntityType, filter models.FilterSpec) (models.QueryResult, error) {
	if entityType == "" {
		return models.QueryResult{}, ErrEmptyEntityType
	}
	key := queryCacheKey(entityType, filter)

	if c.online() {
		rows, err := c.remote.Select(ctx, models.TableFor(entityType), filter)
		if err == nil {
			if err = c.putJSON(ctx, key, rows, c.ttlFor(filter)); err != nil {
				c.logger.Warn().Err(err).Str("func", "SyncCoordinator.Query").Str("key", key).Msg("could not cache query result")
			}
			metrics.RecordQuery(entityType, metrics.QueryRemote)
			return models.QueryResult{Rows: rows, Source: models.SourceRemote}, nil
		}
		c.logger.Warn().Err(err).Str("func", "SyncCoordinator.Query").Str("entity_type", entityType).Msg("remote select failed, serving cache")
	}

	return c.cachedQuery(ctx, entityType, key)
}

func (c *SyncCoordinator) cachedQuery(ctx context.Context, entityType models.EntityType, key string) (models.QueryResult, error) {
	entry, err := c.cache.Get(ctx, key)
	if errors.Is(err, store.ErrCacheMiss) {
		metrics.RecordQuery(entityType, metrics.QueryMiss)
		return models.QueryResult{}, ErrNoOfflineData
	}
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("read cache %s: %w", key, err)
	}

	var rows []models.Payload
	if err = json.Unmarshal(entry.Payload, &rows); err != nil {
		return models.QueryResult{}, fmt.Errorf("decode cache %s: %w", key, err)
	}
	if rows == nil {
		rows = []models.Payload{}
	}

	metrics.RecordQuery(entityType, metrics.QueryCache)
	storedAt := entry.StoredAt
	return models.QueryResult{Rows: rows, Source: models.SourceCache, CachedAt: &storedAt}, nil
}

// OnReconnect drains the pending queue: entity types in order of their
// oldest pending record, records oldest first. The first failure stops its
// entity type for this cycle so later records never overtake it; other types
// carry on.
func (c *SyncCoordinator) OnReconnect(ctx context.Context) (models.DrainReport, error) {
	if c.remote == nil {
		return models.DrainReport{}, ErrOffline
	}

	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	report := models.DrainReport{StartedAt: c.clock.Now()}

	types, err := c.drainOrder(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending entity types: %w", err)
	}

	synced := make(map[string]int, len(types))
	for _, entityType := range types {
		res := c.drainType(ctx, entityType)
		synced[entityType] = res.Synced
		report.Types = append(report.Types, res)
	}

	report.FinishedAt = c.clock.Now()
	metrics.RecordDrain(synced, report.FinishedAt.Sub(report.StartedAt))
	c.refreshPendingGauge(ctx)

	c.mu.Lock()
	c.lastDrain = &report
	c.mu.Unlock()

	c.logger.Info().Str("func", "SyncCoordinator.OnReconnect").Int("synced", report.Synced()).Msg("drain finished")
	if report.Synced() > 0 {
		r := report
		c.events.emit(models.ConnectionEvent{Type: models.SyncComplete, At: report.FinishedAt, Report: &r})
	}

	return report, nil
}

// drainOrder lists types with pending records first, then the known types
// the queue has not seen.
func (c *SyncCoordinator) drainOrder(ctx context.Context) ([]models.EntityType, error) {
	types, err := c.queue.EntityTypes(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.EntityType]bool, len(types))
	for _, t := range types {
		seen[t] = true
	}
	for _, t := range models.KnownEntityTypes {
		if !seen[t] {
			types = append(types, t)
			seen[t] = true
		}
	}
	return types, nil
}

func (c *SyncCoordinator) drainType(ctx context.Context, entityType models.EntityType) models.TypeDrainResult {
	res := models.TypeDrainResult{EntityType: entityType}
	log := c.logger.With().Str("entity_type", entityType).Logger()

	records, err := c.queue.ListUnsynced(ctx, entityType)
	if err != nil {
		log.Err(err).Str("func", "SyncCoordinator.drainType").Msg("could not list pending records")
		res.Err = err.Error()
		return res
	}

	for i, rec := range records {
		if err = c.limiter.Wait(ctx); err != nil {
			res.Err = err.Error()
			res.Remaining = len(records) - i
			return res
		}

		remote, err := c.remote.Insert(ctx, models.TableFor(entityType), rec.Payload)
		if err != nil {
			log.Warn().Err(err).Str("func", "SyncCoordinator.drainType").Str("local_id", rec.ID).Msg("submission failed, stopping this type")
			res.Err = err.Error()
			res.Remaining = len(records) - i
			return res
		}

		if err = c.queue.MarkSynced(ctx, rec.ID, remote.ID()); err != nil {
			log.Err(err).Str("func", "SyncCoordinator.drainType").Str("local_id", rec.ID).Msg("could not mark record synced")
			res.Err = err.Error()
			res.Remaining = len(records) - i
			return res
		}

		c.cacheConfirmed(ctx, entityType, remote)
		res.Synced++
	}

	return res
}

// ForceSync drains the queue on demand.
func (c *SyncCoordinator) ForceSync(ctx context.Context) (models.DrainReport, error) {
	if !c.online() {
		return models.DrainReport{}, ErrOffline
	}
	return c.OnReconnect(ctx)
}

// ResolveID maps an identifier returned by Submit to the backend's id.
// Provisional ids resolve once their record has been confirmed; until then
// confirmed is false. A confirmed record whose stored row the backend did not
// return resolves to an empty id. Any other id is already a backend id.
func (c *SyncCoordinator) ResolveID(ctx context.Context, id string) (string, bool, error) {
	localID, ok := strings.CutPrefix(id, models.ProvisionalPrefix)
	if !ok {
		return id, true, nil
	}

	remoteID, synced, err := c.queue.RemoteID(ctx, localID)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", id, err)
	}
	return remoteID, synced, nil
}

// Status summarises connectivity, queue depth and the last drain.
func (c *SyncCoordinator) Status(ctx context.Context) (models.ConnectionStatus, error) {
	counts, err := c.queue.CountUnsynced(ctx)
	if err != nil {
		return models.ConnectionStatus{}, fmt.Errorf("count pending records: %w", err)
	}

	c.mu.Lock()
	lastDrain := c.lastDrain
	c.mu.Unlock()

	return models.ConnectionStatus{
		Online:            c.online(),
		BackendConfigured: c.remote != nil,
		Pending:           counts,
		LastDrain:         lastDrain,
	}, nil
}

// cacheConfirmed stores a backend-confirmed record under its own key and
// merges it into the unfiltered list of its type.
func (c *SyncCoordinator) cacheConfirmed(ctx context.Context, entityType models.EntityType, record models.Payload) {
	id := record.ID()
	if id == "" {
		return
	}
	log := c.logger.With().Str("entity_type", entityType).Str("func", "SyncCoordinator.cacheConfirmed").Logger()

	if err := c.putJSON(ctx, recordCacheKey(entityType, id), record, c.cfg.DefaultTTL); err != nil {
		log.Warn().Err(err).Msg("could not cache confirmed record")
	}

	allKey := allCacheKey(entityType)
	var rows []models.Payload
	if entry, err := c.cache.Get(ctx, allKey); err == nil {
		if err = json.Unmarshal(entry.Payload, &rows); err != nil {
			rows = nil
		}
	}

	replaced := false
	for i, row := range rows {
		if row.ID() == id {
			rows[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, record)
	}

	if err := c.putJSON(ctx, allKey, rows, c.cfg.DefaultTTL); err != nil {
		log.Warn().Err(err).Msg("could not update cached list")
	}
}

func (c *SyncCoordinator) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.cache.Put(ctx, key, raw, ttl)
}

func (c *SyncCoordinator) ttlFor(filter models.FilterSpec) time.Duration {
	if filter.TTL > 0 {
		return filter.TTL
	}
	return c.cfg.DefaultTTL
}

func (c *SyncCoordinator) refreshPendingGauge(ctx context.Context) {
	counts, err := c.queue.CountUnsynced(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Str("func", "SyncCoordinator.refreshPendingGauge").Msg("could not count pending records")
		return
	}
	metrics.SetPending(counts, models.KnownEntityTypes)
}
