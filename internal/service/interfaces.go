// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service holds the offline-first sync coordinator: the single entry
// point for writes, reads and live subscriptions against the remote backend,
// falling back to the local pending queue and TTL cache while offline and
// draining the queue when connectivity returns.
package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"

	"github.com/sndie3/LABAN/models"
)

// Connectivity is the signal the coordinator follows. [connectivity.Monitor]
// implements it.
type Connectivity interface {
	IsOnline() bool
	// Subscribe registers fn for every signal fire, spurious ones included.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Coordinator is the contract the status API consumes.
type Coordinator interface {
	Submit(ctx context.Context, entityType models.EntityType, payload models.Payload) (models.SubmitResult, error)
	Query(ctx context.Context, entityType models.EntityType, filter models.FilterSpec) (models.QueryResult, error)
	ForceSync(ctx context.Context) (models.DrainReport, error)
	ResolveID(ctx context.Context, id string) (remoteID string, confirmed bool, err error)
	Status(ctx context.Context) (models.ConnectionStatus, error)
}
