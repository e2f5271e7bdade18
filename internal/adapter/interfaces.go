// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter talks to the remote backend of the coordination platform.
//
// The primary abstraction is [RemoteBackend], which decouples the sync
// coordinator from the transport. The package ships a Supabase
// implementation ([NewSupabaseBackend]): PostgREST over resty for reads and
// writes, and the Realtime Phoenix channel protocol over a websocket for live
// subscriptions.
//
// Transport failures are mapped onto the sentinels in errors.go by
// mapHTTPError and mapTransportError so callers can decide with [errors.Is]
// whether to fall back to offline storage ([ErrTransient]) or surface the
// failure ([ErrRejected], [ErrUnauthorized]).
package adapter

import (
	"context"

	"github.com/sndie3/LABAN/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// RemoteBackend is the authoritative data store. Every call blocks until the
// backend answers or ctx is done.
type RemoteBackend interface {
	// Insert stores record in table and returns the row as confirmed by the
	// backend, including its server-assigned id.
	Insert(ctx context.Context, table string, record models.Payload) (models.Payload, error)

	// Select returns the rows of table matching filter.
	Select(ctx context.Context, table string, filter models.FilterSpec) ([]models.Payload, error)

	// Subscribe delivers row changes of table matching filter to handler
	// until the subscription is removed with Unsubscribe. handler runs on the
	// connection's read goroutine and must not block.
	Subscribe(ctx context.Context, table string, filter models.EventFilter, handler func(models.ChangeEvent)) (Subscription, error)

	// Unsubscribe removes sub. Removing an unknown subscription is a no-op.
	Unsubscribe(ctx context.Context, sub Subscription) error

	// Ping checks that the backend is reachable with the configured key.
	Ping(ctx context.Context) error

	// Close drops the realtime connection and every subscription on it.
	Close() error
}

// Subscription identifies one live subscription.
type Subscription struct {
	ID    string `json:"id"`
	Table string `json:"table"`
	Topic string `json:"topic"`
}
