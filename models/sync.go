// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// SubmitResult is returned by a submit. When Provisional is true the record
// was queued locally and ID is a locally generated identifier; LocalID stays
// stable across the later remote confirmation.
type SubmitResult struct {
	Record      Payload `json:"record"`
	ID          string  `json:"id"`
	LocalID     string  `json:"local_id,omitempty"`
	Provisional bool    `json:"offline"`
}

// DataSource tells where a query result came from.
type DataSource string

const (
	SourceRemote DataSource = "remote"
	SourceCache  DataSource = "cache"
)

// QueryResult is a successful read, fresh or cached.
type QueryResult struct {
	Rows     []Payload  `json:"rows"`
	Source   DataSource `json:"source"`
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// TypeDrainResult summarises one entity type of a drain cycle.
type TypeDrainResult struct {
	EntityType EntityType `json:"entity_type"`
	Synced     int        `json:"synced"`
	Remaining  int        `json:"remaining"`
	// Err is the error that stopped the drain of this type, if any.
	Err string `json:"error,omitempty"`
}

// DrainReport summarises a full drain cycle across all entity types.
type DrainReport struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Types      []TypeDrainResult `json:"types"`
}

// Synced returns the number of records confirmed during the cycle.
func (r DrainReport) Synced() int {
	total := 0
	for _, t := range r.Types {
		total += t.Synced
	}
	return total
}

// ConnectionStatus is a snapshot of the coordinator for status displays.
type ConnectionStatus struct {
	Online            bool               `json:"online"`
	BackendConfigured bool               `json:"backend_configured"`
	Pending           map[EntityType]int `json:"pending"`
	LastDrain         *DrainReport       `json:"last_drain,omitempty"`
	Mesh              *MeshStatus        `json:"mesh,omitempty"`
}

// MeshStatus is the relay part of [ConnectionStatus].
type MeshStatus struct {
	DeviceID string `json:"device_id"`
	Running  bool   `json:"running"`
	Peers    int    `json:"peers"`
	Records  int    `json:"records"`
}

// ConnectionEventType names a domain-level connectivity event.
type ConnectionEventType string

const (
	ConnectionLost     ConnectionEventType = "connection-lost"
	ConnectionRestored ConnectionEventType = "connection-restored"
	SyncComplete       ConnectionEventType = "offline-sync-complete"
)

// ConnectionEvent is emitted only on real online/offline transitions and
// after a reconnect drain that confirmed at least one record.
type ConnectionEvent struct {
	Type   ConnectionEventType `json:"type"`
	At     time.Time           `json:"at"`
	Report *DrainReport        `json:"report,omitempty"`
}
