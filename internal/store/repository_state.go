// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
)

// Keys used in the device state store.
const (
	StateDeviceID     = "device_id"
	StateLastLocation = "last_location"
)

type stateStore struct {
	*DB
	clock  utils.Clock
	logger *logger.Logger
}

// NewStateStore constructs a [StateStore] over db.
func NewStateStore(db *DB, clock utils.Clock, logger *logger.Logger) StateStore {
	return &stateStore{
		DB:     db,
		clock:  clock,
		logger: logger,
	}
}

func (s *stateStore) Get(ctx context.Context, key string) (string, error) {
	query, args, err := buildGetStateQuery(key)
	if err != nil {
		return "", err
	}

	var value string
	err = s.DB.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "stateStore.Get").Str("key", key).Msg("failed to read device state")
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return value, nil
}

func (s *stateStore) Set(ctx context.Context, key, value string) error {
	query, args, err := buildUpsertStateQuery(key, value, s.clock.Now())
	if err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "stateStore.Set").Str("key", key).Msg("failed to write device state")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (s *stateStore) Clear(ctx context.Context) error {
	return clearTable(ctx, s.DB, stateTable)
}
