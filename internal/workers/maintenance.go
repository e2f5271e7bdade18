// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/sndie3/LABAN/internal/logger"
)

// MaintenanceJob is a housekeeping step such as pruning expired cache entries.
type MaintenanceJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// Maintenance runs housekeeping jobs on a cron schedule ("@every 10m",
// "0 * * * *" and the like).
type Maintenance struct {
	cron   *cron.Cron
	jobs   []MaintenanceJob
	logger *logger.Logger

	mu  sync.Mutex
	ctx context.Context
	// cancel is non-nil while started
	cancel context.CancelFunc
}

// NewMaintenance validates schedule and registers jobs to run on it.
func NewMaintenance(schedule string, log *logger.Logger, jobs ...MaintenanceJob) (*Maintenance, error) {
	m := &Maintenance{
		cron:   cron.New(),
		jobs:   jobs,
		logger: log,
		ctx:    context.Background(),
	}

	if _, err := m.cron.AddFunc(schedule, m.tick); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}

	return m, nil
}

func (m *Maintenance) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-m.cron.Stop().Done()
}

// RunNow runs every job once, synchronously.
func (m *Maintenance) RunNow(ctx context.Context) {
	for _, job := range m.jobs {
		if err := job.Run(ctx); err != nil {
			m.logger.Err(err).Str("func", "Maintenance.RunNow").Str("job", job.Name).Msg("maintenance job failed")
			continue
		}
		m.logger.Debug().Str("func", "Maintenance.RunNow").Str("job", job.Name).Msg("maintenance job done")
	}
}

func (m *Maintenance) tick() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	m.RunNow(ctx)
}
