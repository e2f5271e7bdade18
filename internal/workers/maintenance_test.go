// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sndie3/LABAN/internal/logger"
)

func TestNewMaintenance_InvalidSchedule(t *testing.T) {
	_, err := NewMaintenance("whenever", logger.Nop())
	assert.Error(t, err)
}

func TestMaintenance_RunNowContinuesAfterFailure(t *testing.T) {
	var second atomic.Bool
	m, err := NewMaintenance("@every 10m", logger.Nop(),
		MaintenanceJob{Name: "fails", Run: func(context.Context) error { return errors.New("disk") }},
		MaintenanceJob{Name: "ok", Run: func(context.Context) error { second.Store(true); return nil }},
	)
	require.NoError(t, err)

	m.RunNow(context.Background())
	assert.True(t, second.Load())
}

func TestMaintenance_RunsOnSchedule(t *testing.T) {
	var runs atomic.Int32
	m, err := NewMaintenance("@every 1s", logger.Nop(),
		MaintenanceJob{Name: "count", Run: func(context.Context) error { runs.Add(1); return nil }},
	)
	require.NoError(t, err)

	m.Start(context.Background())
	m.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}
