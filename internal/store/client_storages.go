// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
)

// ClientStorages groups the device's private repositories into a single
// value that can be passed around the service layer. All three share one
// SQLite connection.
type ClientStorages struct {
	// Queue holds writes accepted while offline.
	Queue PendingQueue
	// Cache holds read results for offline use.
	Cache CacheStore
	// State holds the device id and last known location.
	State StateStore

	db *DB
}

// NewClientStorages initialises the private storage layer. It performs the
// following steps:
//  1. Opens an SQLite connection to dsn, creating parent directories.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs the queue, cache and state repositories over it.
func NewClientStorages(ctx context.Context, dsn string, clock utils.Clock, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Str("dsn", dsn).Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return newClientStorages(db, utils.NewUUIDGenerator(), clock, logger), nil
}

func newClientStorages(db *DB, ids utils.IDGenerator, clock utils.Clock, logger *logger.Logger) *ClientStorages {
	return &ClientStorages{
		Queue: NewPendingQueue(db, ids, clock, logger),
		Cache: NewCacheStore(db, clock, logger),
		State: NewStateStore(db, clock, logger),
		db:    db,
	}
}

// Clear wipes the queue, the cache and the device state.
func (s *ClientStorages) Clear(ctx context.Context) error {
	return errors.Join(
		s.Queue.Clear(ctx),
		s.Cache.Clear(ctx),
		s.State.Clear(ctx),
	)
}

func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
