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

// pendingQueue is the SQLite-backed [PendingQueue]. Ordering uses the
// creation timestamp and falls back to the autoincrement seq column, so
// records created within the same clock tick keep insertion order.
type pendingQueue struct {
	*DB
	ids    utils.IDGenerator
	clock  utils.Clock
	logger *logger.Logger
}

// NewPendingQueue constructs a [PendingQueue] over db.
func NewPendingQueue(db *DB, ids utils.IDGenerator, clock utils.Clock, logger *logger.Logger) PendingQueue {
	return &pendingQueue{
		DB:     db,
		ids:    ids,
		clock:  clock,
		logger: logger,
	}
}

func (q *pendingQueue) Enqueue(ctx context.Context, entityType models.EntityType, payload models.Payload) (models.PendingRecord, error) {
	log := logger.FromContext(ctx)

	record := models.PendingRecord{
		ID:         q.ids.Generate(),
		EntityType: entityType,
		Payload:    payload,
		CreatedAt:  q.clock.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return models.PendingRecord{}, fmt.Errorf("%w: encode payload: %w", ErrPersistence, err)
	}

	query, args, err := buildInsertPendingQuery(record.ID, entityType, data, record.CreatedAt)
	if err != nil {
		return models.PendingRecord{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = q.withRetry(ctx, func() error {
		_, execErr := q.DB.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		log.Err(err).
			Str("func", "pendingQueue.Enqueue").
			Str("entity_type", entityType).
			Msg("failed to insert pending record")
		return models.PendingRecord{}, fmt.Errorf("%w: insert %s record: %w", ErrPersistence, entityType, err)
	}

	return record, nil
}

func (q *pendingQueue) ListUnsynced(ctx context.Context, entityType models.EntityType) ([]models.PendingRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListUnsyncedQuery(entityType)
	if err != nil {
		return nil, err
	}

	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "pendingQueue.ListUnsynced").
			Str("entity_type", entityType).
			Msg("failed to query unsynced records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var records []models.PendingRecord
	for rows.Next() {
		record, scanErr := scanPendingRecord(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "pendingQueue.ListUnsynced").
				Str("entity_type", entityType).
				Msg("failed to scan pending record row")
			return nil, scanErr
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return records, nil
}

func (q *pendingQueue) MarkSynced(ctx context.Context, id, remoteID string) error {
	log := logger.FromContext(ctx)

	query, args, err := buildMarkSyncedQuery(id, remoteID, q.clock.Now())
	if err != nil {
		return err
	}

	var affected int64
	err = q.withRetry(ctx, func() error {
		res, execErr := q.DB.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		log.Err(err).
			Str("func", "pendingQueue.MarkSynced").
			Str("id", id).
			Msg("failed to mark record synced")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if affected > 0 {
		return nil
	}

	// nothing updated: either already synced or unknown
	if _, err := q.lookup(ctx, id); err != nil {
		return err
	}
	return nil
}

func (q *pendingQueue) EntityTypes(ctx context.Context) ([]models.EntityType, error) {
	_, order, err := q.unsyncedCounts(ctx)
	return order, err
}

func (q *pendingQueue) CountUnsynced(ctx context.Context) (map[models.EntityType]int, error) {
	counts, _, err := q.unsyncedCounts(ctx)
	return counts, err
}

func (q *pendingQueue) RemoteID(ctx context.Context, id string) (string, bool, error) {
	state, err := q.lookup(ctx, id)
	if err != nil {
		return "", false, err
	}
	if !state.synced {
		return "", false, nil
	}
	return state.remoteID, true, nil
}

func (q *pendingQueue) PurgeSynced(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := buildPurgeSyncedQuery(olderThan)
	if err != nil {
		return 0, err
	}

	res, err := q.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "pendingQueue.PurgeSynced").Msg("failed to purge synced records")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return res.RowsAffected()
}

func (q *pendingQueue) Clear(ctx context.Context) error {
	return clearTable(ctx, q.DB, pendingTable)
}

type pendingState struct {
	synced   bool
	remoteID string
}

func (q *pendingQueue) lookup(ctx context.Context, id string) (pendingState, error) {
	query, args, err := buildPendingByIDQuery(id)
	if err != nil {
		return pendingState{}, err
	}

	var (
		state    pendingState
		remoteID sql.NullString
	)
	err = q.DB.QueryRowContext(ctx, query, args...).Scan(&state.synced, &remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return pendingState{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return pendingState{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	state.remoteID = remoteID.String
	return state, nil
}

func (q *pendingQueue) unsyncedCounts(ctx context.Context) (map[models.EntityType]int, []models.EntityType, error) {
	query, args, err := buildUnsyncedCountsQuery()
	if err != nil {
		return nil, nil, err
	}

	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "pendingQueue.unsyncedCounts").Msg("failed to count unsynced records")
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	counts := make(map[models.EntityType]int)
	var order []models.EntityType
	for rows.Next() {
		var (
			entityType string
			n          int
		)
		if err := rows.Scan(&entityType, &n); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		counts[entityType] = n
		order = append(order, entityType)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return counts, order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingRecord(row rowScanner) (models.PendingRecord, error) {
	var (
		record    models.PendingRecord
		payload   string
		createdAt int64
		syncedAt  sql.NullInt64
		remoteID  sql.NullString
	)

	if err := row.Scan(&record.ID, &record.EntityType, &payload, &createdAt, &record.Synced, &syncedAt, &remoteID); err != nil {
		return models.PendingRecord{}, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	if err := json.Unmarshal([]byte(payload), &record.Payload); err != nil {
		return models.PendingRecord{}, fmt.Errorf("%w: decode payload of %s: %w", ErrScanningRows, record.ID, err)
	}

	record.CreatedAt = time.Unix(0, createdAt)
	if syncedAt.Valid {
		t := time.Unix(0, syncedAt.Int64)
		record.SyncedAt = &t
	}
	record.RemoteID = remoteID.String

	return record, nil
}

func clearTable(ctx context.Context, db *DB, table string) error {
	query, args, err := buildDeleteAllQuery(table)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "clearTable").Str("table", table).Msg("failed to clear table")
		return fmt.Errorf("%w: clear %s: %w", ErrExecutingStatement, table, err)
	}
	return nil
}
