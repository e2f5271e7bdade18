// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/workers"
	"github.com/sndie3/LABAN/models"
)

// DefaultRefreshInterval is how often watched queries are re-served from the
// cache while offline.
const DefaultRefreshInterval = 30 * time.Second

type watchedQuery struct {
	entityType models.EntityType
	filter     models.FilterSpec
	fn         func(models.QueryResult)
}

type watchRegistry struct {
	mu      sync.Mutex
	nextID  int
	order   []int
	queries map[int]watchedQuery
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{queries: make(map[int]watchedQuery)}
}

func (r *watchRegistry) snapshot() []watchedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]watchedQuery, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.queries[id])
	}
	return out
}

// WatchQuery registers fn to receive the cached result of the query on every
// offline refresh tick. Nothing is delivered while online or while the cache
// holds no result for the query.
func (c *SyncCoordinator) WatchQuery(entityType models.EntityType, filter models.FilterSpec, fn func(models.QueryResult)) (unwatch func()) {
	r := c.watch
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.queries[id] = watchedQuery{entityType: entityType, filter: filter, fn: fn}
	r.order = append(r.order, id)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.queries, id)
			for i, v := range r.order {
				if v == id {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		})
	}
}

// RefreshOffline re-serves every watched query from the cache. It does
// nothing while online.
func (c *SyncCoordinator) RefreshOffline(ctx context.Context) int {
	if c.online() {
		return 0
	}

	served := 0
	for _, q := range c.watch.snapshot() {
		res, err := c.cachedQuery(ctx, q.entityType, queryCacheKey(q.entityType, q.filter))
		if errors.Is(err, ErrNoOfflineData) {
			continue
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("func", "SyncCoordinator.RefreshOffline").Str("entity_type", q.entityType).Msg("could not read cached query")
			continue
		}
		if c.serveWatch(q, res) {
			served++
		}
	}
	return served
}

func (c *SyncCoordinator) serveWatch(q watchedQuery, res models.QueryResult) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("func", "SyncCoordinator.serveWatch").Str("entity_type", q.entityType).Interface("panic", r).Msg("query watcher panicked")
			ok = false
		}
	}()
	q.fn(res)
	return true
}

// RefreshJob drives [SyncCoordinator.RefreshOffline] on a fixed interval.
type RefreshJob struct {
	periodic *workers.Periodic
}

// NewRefreshJob creates an idle refresh job. A non-positive interval means
// [DefaultRefreshInterval].
func NewRefreshJob(c *SyncCoordinator, interval time.Duration, log *logger.Logger) *RefreshJob {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshJob{
		periodic: workers.NewPeriodic("offline-refresh", interval, func(ctx context.Context) {
			c.RefreshOffline(ctx)
		}, log),
	}
}

func (j *RefreshJob) Start(ctx context.Context) { j.periodic.Start(ctx) }

func (j *RefreshJob) Stop() { j.periodic.Stop() }
