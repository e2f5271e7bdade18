// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	pendingTable = "pending_records"
	cacheTable   = "cache_entries"
	stateTable   = "device_state"
	mediumTable  = "mesh_entries"
)

var sqliteBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var pendingColumns = []string{"id", "entity_type", "payload", "created_at", "synced", "synced_at", "remote_id"}

func buildInsertPendingQuery(id, entityType string, payload []byte, createdAt time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Insert(pendingTable).
		Columns("id", "entity_type", "payload", "created_at", "synced").
		Values(id, entityType, string(payload), createdAt.UnixNano(), false).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildListUnsyncedQuery(entityType string) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Select(pendingColumns...).
		From(pendingTable).
		Where(sq.Eq{"entity_type": entityType, "synced": false}).
		OrderBy("created_at ASC", "seq ASC").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildMarkSyncedQuery(id, remoteID string, syncedAt time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Update(pendingTable).
		Set("synced", true).
		Set("synced_at", syncedAt.UnixNano()).
		Set("remote_id", remoteID).
		Where(sq.Eq{"id": id, "synced": false}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildPendingByIDQuery(id string) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Select("synced", "remote_id").
		From(pendingTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildUnsyncedCountsQuery() (string, []any, error) {
	query, args, err := sqliteBuilder.
		Select("entity_type", "COUNT(*)").
		From(pendingTable).
		Where(sq.Eq{"synced": false}).
		GroupBy("entity_type").
		OrderBy("MIN(created_at) ASC", "entity_type ASC").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildPurgeSyncedQuery(olderThan time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Delete(pendingTable).
		Where(sq.Eq{"synced": true}).
		Where(sq.Lt{"synced_at": olderThan.UnixNano()}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildUpsertCacheQuery(key string, payload []byte, storedAt, expiresAt time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Insert(cacheTable).
		Columns("cache_key", "payload", "stored_at", "expires_at").
		Values(key, string(payload), storedAt.UnixNano(), expiresAt.UnixNano()).
		Suffix("ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at, expires_at = excluded.expires_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildGetCacheQuery(key string) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Select("cache_key", "payload", "stored_at", "expires_at").
		From(cacheTable).
		Where(sq.Eq{"cache_key": key}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildPruneCacheQuery(now time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Delete(cacheTable).
		Where(sq.LtOrEq{"expires_at": now.UnixNano()}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildUpsertStateQuery(key, value string, updatedAt time.Time) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Insert(stateTable).
		Columns("state_key", "value", "updated_at").
		Values(key, value, updatedAt.UnixNano()).
		Suffix("ON CONFLICT (state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildGetStateQuery(key string) (string, []any, error) {
	query, args, err := sqliteBuilder.
		Select("value").
		From(stateTable).
		Where(sq.Eq{"state_key": key}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildDeleteAllQuery(table string) (string, []any, error) {
	query, args, err := sqliteBuilder.Delete(table).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}
