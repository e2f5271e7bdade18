// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/mock"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// ── Submit ──────────────────────────────────────────────────────────────────

func TestSubmit_OnlineReturnsConfirmedRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	payload := models.Payload{"message": "trapped on roof"}
	remote.EXPECT().Insert(ctx, "help_requests", payload).
		Return(models.Payload{"id": float64(42), "message": "trapped on roof"}, nil)

	res, err := env.coordinator.Submit(ctx, models.HelpRequest, payload)

	require.NoError(t, err)
	assert.False(t, res.Provisional)
	assert.Equal(t, "42", res.ID)
	assert.Empty(t, res.LocalID)
	assert.Empty(t, env.pending(t))

	entry, err := env.storages.Cache.Get(ctx, "help-request:record:42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"message":"trapped on roof"}`, string(entry.Payload))

	all, err := env.storages.Cache.Get(ctx, "help-request:all")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":42,"message":"trapped on roof"}]`, string(all.Payload))
}

func TestSubmit_OfflineQueuesProvisional(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, false)

	var queued []models.PendingRecord
	env.coordinator.OnQueued(func(rec models.PendingRecord) { queued = append(queued, rec) })

	res, err := env.coordinator.Submit(context.Background(), models.HelpRequest, models.Payload{"message": "need water"})

	require.NoError(t, err)
	assert.True(t, res.Provisional)
	assert.True(t, strings.HasPrefix(res.ID, models.ProvisionalPrefix))
	assert.Equal(t, models.ProvisionalPrefix+res.LocalID, res.ID)
	assert.Equal(t, res.ID, res.Record["id"])
	assert.Equal(t, true, res.Record["offline"])
	assert.Equal(t, "need water", res.Record["message"])

	assert.Equal(t, map[models.EntityType]int{models.HelpRequest: 1}, env.pending(t))
	require.Len(t, queued, 1)
	assert.Equal(t, res.LocalID, queued[0].ID)
}

func TestSubmit_TransientFailureQueues(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)

	remote.EXPECT().Insert(gomock.Any(), "road_reports", gomock.Any()).
		Return(nil, fmt.Errorf("insert road_reports: %w", adapter.ErrTransient))

	res, err := env.coordinator.Submit(context.Background(), models.RoadReport, models.Payload{"road": "MacArthur Hwy"})

	require.NoError(t, err)
	assert.True(t, res.Provisional)
	assert.Equal(t, map[models.EntityType]int{models.RoadReport: 1}, env.pending(t))
}

func TestSubmit_RejectionIsSurfaced(t *testing.T) {
	for _, rejection := range []error{adapter.ErrRejected, adapter.ErrUnauthorized} {
		t.Run(rejection.Error(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			remote := mock.NewMockRemoteBackend(ctrl)
			env := newTestEnv(t, remote, true)

			remote.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, fmt.Errorf("insert: %w", rejection))

			_, err := env.coordinator.Submit(context.Background(), models.HelpRequest, models.Payload{"message": "x"})

			assert.ErrorIs(t, err, rejection)
			assert.Empty(t, env.pending(t))
		})
	}
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mock.NewMockPendingQueue(ctrl)
	cache := mock.NewMockCacheStore(ctrl)
	monitor := newOfflineMonitor()

	queue.EXPECT().Enqueue(gomock.Any(), models.HelpRequest, gomock.Any()).
		Return(models.PendingRecord{}, fmt.Errorf("%w: disk full", store.ErrPersistence))

	c := NewSyncCoordinator(nil, queue, cache, monitor, nil, CoordinatorConfig{}, logger.Nop())
	_, err := c.Submit(context.Background(), models.HelpRequest, models.Payload{"message": "x"})

	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t, nil, false)

	_, err := env.coordinator.Submit(context.Background(), "", models.Payload{"a": 1})
	assert.ErrorIs(t, err, ErrEmptyEntityType)

	_, err = env.coordinator.Submit(context.Background(), models.HelpRequest, nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestSubmit_NoBackendAlwaysQueues(t *testing.T) {
	env := newTestEnv(t, nil, true)

	res, err := env.coordinator.Submit(context.Background(), models.HelpRequest, models.Payload{"message": "x"})

	require.NoError(t, err)
	assert.True(t, res.Provisional)
}

// ── Query ───────────────────────────────────────────────────────────────────

func TestQuery_OnlineThenOfflineServesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	filter := models.FilterSpec{Eq: map[string]string{"region": "NCR"}, Limit: 5}
	rows := []models.Payload{{"id": float64(1), "region": "NCR"}}
	remote.EXPECT().Select(ctx, "help_requests", filter).Return(rows, nil)

	res, err := env.coordinator.Query(ctx, models.HelpRequest, filter)
	require.NoError(t, err)
	assert.Equal(t, models.SourceRemote, res.Source)
	assert.Nil(t, res.CachedAt)

	env.monitor.Set(false)
	env.clock.Advance(time.Hour)

	res, err = env.coordinator.Query(ctx, models.HelpRequest, filter)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, res.Source)
	assert.Equal(t, rows, res.Rows)
	require.NotNil(t, res.CachedAt)
	assert.True(t, testStart.Equal(*res.CachedAt))
}

func TestQuery_RemoteFailureFallsBackToCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	gomock.InOrder(
		remote.EXPECT().Select(ctx, "road_reports", gomock.Any()).Return([]models.Payload{{"id": "r1"}}, nil),
		remote.EXPECT().Select(ctx, "road_reports", gomock.Any()).Return(nil, adapter.ErrTransient),
	)

	_, err := env.coordinator.Query(ctx, models.RoadReport, models.FilterSpec{})
	require.NoError(t, err)

	res, err := env.coordinator.Query(ctx, models.RoadReport, models.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, res.Source)
	assert.Equal(t, "r1", res.Rows[0].ID())
}

func TestQuery_OfflineMiss(t *testing.T) {
	env := newTestEnv(t, nil, false)

	_, err := env.coordinator.Query(context.Background(), models.HelpRequest, models.FilterSpec{Limit: 3})

	assert.ErrorIs(t, err, ErrNoOfflineData)
}

func TestQuery_CachedEmptyResultIsNotAMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	remote.EXPECT().Select(ctx, "help_requests", gomock.Any()).Return([]models.Payload{}, nil)
	_, err := env.coordinator.Query(ctx, models.HelpRequest, models.FilterSpec{})
	require.NoError(t, err)

	env.monitor.Set(false)
	res, err := env.coordinator.Query(ctx, models.HelpRequest, models.FilterSpec{})

	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestQuery_FilterTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	filter := models.FilterSpec{Eq: map[string]string{"status": "open"}, TTL: time.Second}
	remote.EXPECT().Select(ctx, "help_requests", filter).Return([]models.Payload{{"id": "1"}}, nil)

	_, err := env.coordinator.Query(ctx, models.HelpRequest, filter)
	require.NoError(t, err)
	env.monitor.Set(false)

	env.clock.Advance(999 * time.Millisecond)
	_, err = env.coordinator.Query(ctx, models.HelpRequest, filter)
	require.NoError(t, err)

	env.clock.Advance(time.Millisecond)
	_, err = env.coordinator.Query(ctx, models.HelpRequest, filter)
	assert.ErrorIs(t, err, ErrNoOfflineData)
}

func TestQuery_ConfirmedSubmitVisibleToUnfilteredOfflineQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).Return(models.Payload{"id": "a"}, nil)
	remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).Return(models.Payload{"id": "b"}, nil)

	_, err := env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "1"})
	require.NoError(t, err)
	_, err = env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "2"})
	require.NoError(t, err)

	env.monitor.Set(false)
	res, err := env.coordinator.Query(ctx, models.HelpRequest, models.FilterSpec{Select: "*"})

	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a", res.Rows[0].ID())
	assert.Equal(t, "b", res.Rows[1].ID())
}

// ── Drain ───────────────────────────────────────────────────────────────────

func TestOfflineSubmitThenReconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, false)
	ctx := context.Background()

	rec := &eventRecorder{}
	env.coordinator.OnConnectionChange(rec.record)
	env.coordinator.Start(ctx)

	first, err := env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "first"})
	require.NoError(t, err)
	_, err = env.coordinator.Submit(ctx, models.RoadReport, models.Payload{"message": "closed"})
	require.NoError(t, err)
	_, err = env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "second"})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	insert := func(id string) func(context.Context, string, models.Payload) (models.Payload, error) {
		return func(_ context.Context, table string, p models.Payload) (models.Payload, error) {
			mu.Lock()
			order = append(order, table+":"+fmt.Sprint(p["message"]))
			mu.Unlock()
			out := p.Clone()
			out["id"] = id
			return out, nil
		}
	}
	gomock.InOrder(
		remote.EXPECT().Insert(gomock.Any(), "help_requests", gomock.Any()).DoAndReturn(insert("101")),
		remote.EXPECT().Insert(gomock.Any(), "help_requests", gomock.Any()).DoAndReturn(insert("102")),
		remote.EXPECT().Insert(gomock.Any(), "road_reports", gomock.Any()).DoAndReturn(insert("201")),
	)

	resolved, confirmed, err := env.coordinator.ResolveID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Empty(t, resolved)

	env.monitor.Set(true)

	require.Eventually(t, func() bool { return len(env.pending(t)) == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []models.ConnectionEventType{models.ConnectionRestored, models.SyncComplete}, rec.types())
	mu.Lock()
	assert.Equal(t, []string{"help_requests:first", "help_requests:second", "road_reports:closed"}, order)
	mu.Unlock()

	resolved, confirmed, err = env.coordinator.ResolveID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, "101", resolved)

	status, err := env.coordinator.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.LastDrain)
	assert.Equal(t, 3, status.LastDrain.Synced())
}

func TestOnReconnect_HiddenRowIsStillConfirmed(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, false)
	ctx := context.Background()

	queued, err := env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "hidden"})
	require.NoError(t, err)

	env.monitor.Set(true)
	remote.EXPECT().Insert(gomock.Any(), "help_requests", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, p models.Payload) (models.Payload, error) {
			return p.Clone(), nil
		})

	report, err := env.coordinator.OnReconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced())

	resolved, confirmed, err := env.coordinator.ResolveID(ctx, queued.ID)
	require.NoError(t, err)
	assert.True(t, confirmed, "record reached the backend")
	assert.Empty(t, resolved, "backend did not return its id")
}

func TestOnReconnect_NoSkipAhead(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := env.storages.Queue.Enqueue(ctx, models.HelpRequest, models.Payload{"n": float64(i)})
		require.NoError(t, err)
	}

	var seen []float64
	ok := func(_ context.Context, _ string, p models.Payload) (models.Payload, error) {
		seen = append(seen, p["n"].(float64))
		return models.Payload{"id": fmt.Sprint(p["n"])}, nil
	}
	fail := func(_ context.Context, _ string, p models.Payload) (models.Payload, error) {
		seen = append(seen, p["n"].(float64))
		return nil, adapter.ErrTransient
	}

	gomock.InOrder(
		remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).DoAndReturn(ok),
		remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).DoAndReturn(fail),
	)

	report, err := env.coordinator.OnReconnect(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Types)
	assert.Equal(t, models.HelpRequest, report.Types[0].EntityType)
	assert.Equal(t, 1, report.Types[0].Synced)
	assert.Equal(t, 2, report.Types[0].Remaining)
	assert.NotEmpty(t, report.Types[0].Err)
	assert.Equal(t, []float64{1, 2}, seen)

	gomock.InOrder(
		remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).DoAndReturn(ok),
		remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).DoAndReturn(ok),
	)

	report, err = env.coordinator.OnReconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced())
	assert.Equal(t, []float64{1, 2, 2, 3}, seen)
	assert.Empty(t, env.pending(t))
}

func TestOnReconnect_FailureStopsOnlyItsType(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)
	ctx := context.Background()

	_, err := env.storages.Queue.Enqueue(ctx, models.HelpRequest, models.Payload{"message": "x"})
	require.NoError(t, err)
	_, err = env.storages.Queue.Enqueue(ctx, models.RoadReport, models.Payload{"road": "y"})
	require.NoError(t, err)

	remote.EXPECT().Insert(ctx, "help_requests", gomock.Any()).Return(nil, adapter.ErrRejected)
	remote.EXPECT().Insert(ctx, "road_reports", gomock.Any()).Return(models.Payload{"id": "7"}, nil)

	report, err := env.coordinator.OnReconnect(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced())
	assert.Equal(t, map[models.EntityType]int{models.HelpRequest: 1}, env.pending(t))
}

func TestOnReconnect_WithoutBackend(t *testing.T) {
	env := newTestEnv(t, nil, true)

	_, err := env.coordinator.OnReconnect(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
}

func TestOnReconnect_ListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	queue := mock.NewMockPendingQueue(ctrl)
	cache := mock.NewMockCacheStore(ctrl)

	queue.EXPECT().EntityTypes(gomock.Any()).Return(nil, errors.New("db closed"))

	c := NewSyncCoordinator(remote, queue, cache, newOfflineMonitor(), utils.NewManualClock(testStart), CoordinatorConfig{}, logger.Nop())
	_, err := c.OnReconnect(context.Background())

	assert.Error(t, err)
}

func TestSignal_SpuriousFiresAreIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, true)

	rec := &eventRecorder{}
	env.coordinator.OnConnectionChange(rec.record)
	env.coordinator.Start(context.Background())

	env.monitor.Set(true)
	env.monitor.Set(true)
	assert.Empty(t, rec.types())

	env.monitor.Set(false)
	env.monitor.Set(false)
	assert.Equal(t, []models.ConnectionEventType{models.ConnectionLost}, rec.types())

	env.monitor.Set(true)
	env.coordinator.Stop()
	assert.Equal(t, []models.ConnectionEventType{models.ConnectionLost, models.ConnectionRestored}, rec.types())
}

func TestSignal_WithoutBackendNeverRestores(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := &eventRecorder{}
	env.coordinator.OnConnectionChange(rec.record)
	env.coordinator.Start(context.Background())

	env.monitor.Set(true)
	env.monitor.Set(false)
	env.monitor.Set(true)
	env.coordinator.Stop()

	assert.Empty(t, rec.types(), "an interface coming up is not a reconnect without a backend")
	assert.Nil(t, env.coordinator.lastDrain)
}

func TestStartStop_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil, false)

	env.coordinator.Start(context.Background())
	env.coordinator.Start(context.Background())
	env.coordinator.Stop()
	env.coordinator.Stop()

	rec := &eventRecorder{}
	env.coordinator.OnConnectionChange(rec.record)
	env.monitor.Set(true)
	assert.Empty(t, rec.types(), "stopped coordinator must not follow the signal")
}

func TestForceSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteBackend(ctrl)
	env := newTestEnv(t, remote, false)
	ctx := context.Background()

	_, err := env.coordinator.ForceSync(ctx)
	assert.ErrorIs(t, err, ErrOffline)

	_, err = env.coordinator.Submit(ctx, models.RoadReport, models.Payload{"road": "open"})
	require.NoError(t, err)

	env.monitor.Set(true)
	remote.EXPECT().Insert(ctx, "road_reports", gomock.Any()).Return(models.Payload{"id": "9"}, nil)

	report, err := env.coordinator.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced())
}

// ── Status and ids ──────────────────────────────────────────────────────────

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil, true)
	ctx := context.Background()

	_, err := env.coordinator.Submit(ctx, models.HelpRequest, models.Payload{"message": "x"})
	require.NoError(t, err)

	status, err := env.coordinator.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Online, "no backend means offline")
	assert.False(t, status.BackendConfigured)
	assert.Equal(t, 1, status.Pending[models.HelpRequest])
	assert.Nil(t, status.LastDrain)

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"backend_configured":false`)
}

func TestResolveID(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ctx := context.Background()

	id, confirmed, err := env.coordinator.ResolveID(ctx, "42")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, "42", id)

	_, _, err = env.coordinator.ResolveID(ctx, models.ProvisionalPrefix+"unknown")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestShouldQueue(t *testing.T) {
	assert.False(t, shouldQueue(nil))
	assert.True(t, shouldQueue(adapter.ErrTransient))
	assert.True(t, shouldQueue(context.DeadlineExceeded))
	assert.False(t, shouldQueue(fmt.Errorf("x: %w", adapter.ErrRejected)))
	assert.False(t, shouldQueue(adapter.ErrUnauthorized))
	assert.False(t, shouldQueue(adapter.ErrMalformedResponse))
}

func TestQueryCacheKey(t *testing.T) {
	assert.Equal(t, "help-request:all", queryCacheKey(models.HelpRequest, models.FilterSpec{}))
	assert.Equal(t, "help-request:all", queryCacheKey(models.HelpRequest, models.FilterSpec{Select: "*", TTL: time.Minute}))
	assert.Equal(t, "help-request:select=*;limit=5", queryCacheKey(models.HelpRequest, models.FilterSpec{Limit: 5}))
	assert.Equal(t, "road-report:record:9", recordCacheKey(models.RoadReport, "9"))
}
