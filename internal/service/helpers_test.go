// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/internal/connectivity"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	coordinator *SyncCoordinator
	storages    *store.ClientStorages
	monitor     *connectivity.Monitor
	clock       *utils.ManualClock
}

// newTestEnv wires a coordinator over real in-memory SQLite storages.
// remote may be nil for a device without a backend.
func newTestEnv(t *testing.T, remote adapter.RemoteBackend, online bool) *testEnv {
	t.Helper()

	clock := utils.NewManualClock(testStart)
	storages, err := store.NewClientStorages(context.Background(), ":memory:", clock, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })

	monitor := connectivity.NewMonitor(online, logger.Nop())
	c := NewSyncCoordinator(remote, storages.Queue, storages.Cache, monitor, clock, CoordinatorConfig{}, logger.Nop())
	t.Cleanup(c.Stop)

	return &testEnv{coordinator: c, storages: storages, monitor: monitor, clock: clock}
}

func (e *testEnv) pending(t *testing.T) map[models.EntityType]int {
	t.Helper()
	counts, err := e.storages.Queue.CountUnsynced(context.Background())
	require.NoError(t, err)
	return counts
}

// eventRecorder collects connection events.
type eventRecorder struct {
	mu     sync.Mutex
	events []models.ConnectionEvent
}

func (r *eventRecorder) record(ev models.ConnectionEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []models.ConnectionEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ConnectionEventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newOfflineMonitor() *connectivity.Monitor {
	return connectivity.NewMonitor(false, logger.Nop())
}
