// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
)

// cacheStore is the SQLite-backed [CacheStore]. Expired rows stay on disk
// until [CacheStore.Prune] but are never returned.
type cacheStore struct {
	*DB
	clock  utils.Clock
	logger *logger.Logger
}

// NewCacheStore constructs a [CacheStore] over db.
func NewCacheStore(db *DB, clock utils.Clock, logger *logger.Logger) CacheStore {
	return &cacheStore{
		DB:     db,
		clock:  clock,
		logger: logger,
	}
}

func (c *cacheStore) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	now := c.clock.Now()

	query, args, err := buildUpsertCacheQuery(key, payload, now, now.Add(ttl))
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, func() error {
		_, execErr := c.DB.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "cacheStore.Put").
			Str("key", key).
			Msg("failed to upsert cache entry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (c *cacheStore) Get(ctx context.Context, key string) (models.CacheEntry, error) {
	query, args, err := buildGetCacheQuery(key)
	if err != nil {
		return models.CacheEntry{}, err
	}

	var (
		entry               models.CacheEntry
		payload             string
		storedAt, expiresAt int64
	)
	err = c.DB.QueryRowContext(ctx, query, args...).Scan(&entry.Key, &payload, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, ErrCacheMiss
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "cacheStore.Get").
			Str("key", key).
			Msg("failed to read cache entry")
		return models.CacheEntry{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	entry.Payload = json.RawMessage(payload)
	entry.StoredAt = time.Unix(0, storedAt)
	entry.ExpiresAt = time.Unix(0, expiresAt)

	if entry.Expired(c.clock.Now()) {
		return models.CacheEntry{}, ErrCacheMiss
	}

	return entry, nil
}

func (c *cacheStore) Prune(ctx context.Context) (int64, error) {
	query, args, err := buildPruneCacheQuery(c.clock.Now())
	if err != nil {
		return 0, err
	}

	res, err := c.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "cacheStore.Prune").Msg("failed to prune cache")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return res.RowsAffected()
}

func (c *cacheStore) Clear(ctx context.Context) error {
	return clearTable(ctx, c.DB, cacheTable)
}
