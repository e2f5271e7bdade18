// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sndie3/LABAN/internal/logger"
)

func TestPeriodic_TicksUntilStopped(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", 5*time.Millisecond, func(context.Context) { runs.Add(1) }, logger.Nop())

	p.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	p.Stop()
	assert.False(t, p.Started())
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestPeriodic_ImmediateRun(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", time.Hour, func(context.Context) { runs.Add(1) }, logger.Nop(), WithImmediateRun())

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
}

func TestPeriodic_StartStopIdempotent(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", time.Hour, func(context.Context) { runs.Add(1) }, logger.Nop(), WithImmediateRun())

	p.Stop() // not started: no-op
	p.Start(context.Background())
	p.Start(context.Background())
	assert.True(t, p.Started())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load(), "second Start must not launch another loop")

	p.Stop()
	p.Stop()
	assert.False(t, p.Started())

	// restart after stop
	p.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
	p.Stop()
}

func TestPeriodic_ContextCancelStopsLoop(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPeriodic("test", 2*time.Millisecond, func(context.Context) { runs.Add(1) }, logger.Nop())

	p.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
	p.Stop()
}

func TestPeriodic_RunOnceGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	p := NewPeriodic("test", time.Hour, func(context.Context) {
		close(entered)
		<-release
	}, logger.Nop())

	done := make(chan bool)
	go func() { done <- p.RunOnce(context.Background()) }()
	<-entered

	assert.False(t, p.RunOnce(context.Background()), "overlapping run must be skipped")
	assert.EqualValues(t, 1, p.Skipped())

	close(release)
	assert.True(t, <-done)
}

func TestPeriodic_PanicIsContained(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", time.Hour, func(context.Context) {
		runs.Add(1)
		panic("boom")
	}, logger.Nop())

	assert.True(t, p.RunOnce(context.Background()))
	assert.True(t, p.RunOnce(context.Background()), "guard released after panic")
	assert.EqualValues(t, 2, runs.Load())
}

func TestNewPeriodic_DefaultInterval(t *testing.T) {
	p := NewPeriodic("test", 0, func(context.Context) {}, logger.Nop())
	assert.Equal(t, time.Minute, p.interval)
}
