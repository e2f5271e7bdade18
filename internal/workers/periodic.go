// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
)

// Task is a single run of a periodic activity. It should honour ctx.
type Task func(ctx context.Context)

// Periodic calls a Task every interval on its own goroutine. A run that is
// still in progress when the next one is due causes that run to be skipped
// rather than overlapped.
type Periodic struct {
	name      string
	interval  time.Duration
	task      Task
	immediate bool
	logger    *logger.Logger

	running atomic.Bool
	skipped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PeriodicOption configures a [Periodic].
type PeriodicOption func(*Periodic)

// WithImmediateRun makes Start run the task once right away instead of
// waiting a full interval.
func WithImmediateRun() PeriodicOption {
	return func(p *Periodic) { p.immediate = true }
}

// NewPeriodic creates an idle Periodic. A non-positive interval defaults to
// one minute.
func NewPeriodic(name string, interval time.Duration, task Task, log *logger.Logger, opts ...PeriodicOption) *Periodic {
	if interval <= 0 {
		interval = time.Minute
	}
	p := &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		logger:   log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the ticker goroutine. It is a no-op if already started.
// The goroutine exits when ctx is cancelled or Stop is called.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		if p.immediate {
			p.RunOnce(jobCtx)
		}

		t := time.NewTicker(p.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				p.RunOnce(jobCtx)
			}
		}
	}()

	p.logger.Debug().Str("func", "Periodic.Start").Str("task", p.name).Dur("interval", p.interval).Msg("periodic task started")
}

// Stop cancels the ticker goroutine and blocks until it has fully exited,
// including a run in progress. Safe to call when not started.
func (p *Periodic) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()

	p.logger.Debug().Str("func", "Periodic.Stop").Str("task", p.name).Msg("periodic task stopped")
}

// Started reports whether the ticker goroutine is active.
func (p *Periodic) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// RunOnce runs the task now unless a run is already in progress, in which
// case it returns false without running. A panicking task is logged and
// treated as finished.
func (p *Periodic) RunOnce(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.Debug().Str("func", "Periodic.RunOnce").Str("task", p.name).Msg("previous run still in progress, skipping")
		return false
	}
	defer p.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("func", "Periodic.RunOnce").Str("task", p.name).Interface("panic", r).Msg("periodic task panicked")
		}
	}()

	p.task(ctx)
	return true
}

// Skipped returns how many runs were skipped because of overlap.
func (p *Periodic) Skipped() int64 {
	return p.skipped.Load()
}
