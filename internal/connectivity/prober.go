// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"errors"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/workers"
)

// Prober periodically runs its probes in order and feeds the outcome to a
// Monitor: online only when every probe succeeds.
type Prober struct {
	monitor  *Monitor
	probes   []Probe
	timeout  time.Duration
	periodic *workers.Periodic
	logger   *logger.Logger
}

// NewProber creates a Prober running every interval; each check is bounded by
// timeout (interval when timeout is not positive).
func NewProber(monitor *Monitor, interval, timeout time.Duration, log *logger.Logger, probes ...Probe) *Prober {
	if timeout <= 0 {
		timeout = interval
	}
	p := &Prober{
		monitor: monitor,
		probes:  probes,
		timeout: timeout,
		logger:  log,
	}
	p.periodic = workers.NewPeriodic("connectivity-probe", interval, func(ctx context.Context) {
		p.Check(ctx)
	}, log, workers.WithImmediateRun())
	return p
}

// Check runs the probes once, signals the monitor and returns the result.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	online := true
	for _, probe := range p.probes {
		if err := probe.Probe(ctx); err != nil {
			p.logger.Debug().Err(err).Str("func", "Prober.Check").Str("probe", probe.Name()).Msg("probe failed")
			online = false
			break
		}
	}

	// a check cut short by shutdown says nothing about the network
	if !online && errors.Is(ctx.Err(), context.Canceled) {
		return p.monitor.IsOnline()
	}

	p.monitor.Set(online)
	return online
}

func (p *Prober) Start(ctx context.Context) { p.periodic.Start(ctx) }

func (p *Prober) Stop() { p.periodic.Stop() }
