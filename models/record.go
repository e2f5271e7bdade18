// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// PendingRecord is a write accepted while the backend was unreachable and
// waiting in the pending queue for submission.
//
// Synced only ever moves from false to true. Once true the record is never
// resubmitted; RemoteID then holds the identifier assigned by the backend.
type PendingRecord struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	Payload    Payload    `json:"payload"`
	CreatedAt  time.Time  `json:"created_at"`
	Synced     bool       `json:"synced"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
	RemoteID   string     `json:"remote_id,omitempty"`
}

// ProvisionalID is the identifier handed to callers before the backend has
// confirmed the record.
func (r PendingRecord) ProvisionalID() string {
	return ProvisionalPrefix + r.ID
}

// ProvisionalPrefix marks identifiers generated locally.
const ProvisionalPrefix = "offline-"
