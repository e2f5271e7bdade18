// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sndie3/LABAN/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// PendingQueue is the durable queue of writes accepted while offline.
type PendingQueue interface {
	// Enqueue persists payload as a new unsynced record. Failures wrap
	// [ErrPersistence].
	Enqueue(ctx context.Context, entityType models.EntityType, payload models.Payload) (models.PendingRecord, error)
	// ListUnsynced returns unsynced records of entityType oldest first,
	// ties broken by insertion order.
	ListUnsynced(ctx context.Context, entityType models.EntityType) ([]models.PendingRecord, error)
	// MarkSynced records remote confirmation. A second call for the same id
	// leaves the row untouched.
	MarkSynced(ctx context.Context, id, remoteID string) error
	// EntityTypes lists entity types that have unsynced records.
	EntityTypes(ctx context.Context) ([]models.EntityType, error)
	// CountUnsynced returns the number of unsynced records per entity type.
	CountUnsynced(ctx context.Context) (map[models.EntityType]int, error)
	// RemoteID returns the backend id assigned to a record and whether the
	// record is synced. A synced record may have an empty id when the backend
	// did not return the stored row.
	RemoteID(ctx context.Context, id string) (remoteID string, synced bool, err error)
	// PurgeSynced deletes synced records confirmed before olderThan.
	PurgeSynced(ctx context.Context, olderThan time.Time) (int64, error)
	Clear(ctx context.Context) error
}

// CacheStore keeps read results for offline use.
type CacheStore interface {
	Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
	// Get returns [ErrCacheMiss] for absent and expired keys alike.
	Get(ctx context.Context, key string) (models.CacheEntry, error)
	// Prune deletes expired entries and returns how many were removed.
	Prune(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// StateStore keeps small pieces of device state across restarts.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// Medium is storage shared by every device in local range. Entries carry
// their own expiry; the medium itself never expires anything.
type Medium interface {
	Put(ctx context.Context, key string, value []byte) error
	// Get returns [ErrKeyNotFound] for absent keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// ListKeys returns every key starting with prefix, sorted.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrorClassificator decides whether a failed SQL operation may be retried.
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
}
