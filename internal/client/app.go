// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/connectivity"
	handler "github.com/sndie3/LABAN/internal/handler/http"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/mesh"
	"github.com/sndie3/LABAN/internal/server"
	"github.com/sndie3/LABAN/internal/service"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/internal/workers"
	"github.com/sndie3/LABAN/models"
)

// App is one running device agent.
type App struct {
	deviceID string

	storages *store.ClientStorages
	medium   store.Medium
	remote   adapter.RemoteBackend

	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	sync    *service.SyncCoordinator
	relay   *mesh.Relay
	bridge  *meshBridge
	workers *workers.Workers
	// server is nil when no status address is configured
	server server.Server

	running atomic.Bool
	logger  *logger.Logger
}

// NewApp opens every resource the agent needs and wires the components
// together. Nothing runs until [App.Run].
func NewApp(ctx context.Context, cfg *config.AgentConfig, build models.BuildInfo, log *logger.Logger) (_ *App, err error) {
	a := &App{logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	clock := utils.SystemClock{}
	ids := utils.NewUUIDGenerator()

	a.storages, err = store.NewClientStorages(ctx, cfg.Storage.DB.DSN, clock, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	if cfg.App.Reset {
		log.Warn().Str("func", "NewApp").Msg("clearing local offline data")
		if err = a.storages.Clear(ctx); err != nil {
			return nil, fmt.Errorf("reset local storage: %w", err)
		}
	}

	a.deviceID, err = resolveDeviceID(ctx, cfg.App.DeviceID, a.storages.State, ids)
	if err != nil {
		return nil, err
	}
	log = log.WithDevice(a.deviceID)
	a.logger = log

	a.medium, err = store.NewMedium(ctx, cfg.Storage.Medium, log)
	if err != nil {
		return nil, fmt.Errorf("open shared medium: %w", err)
	}

	probes := []connectivity.Probe{connectivity.NewInterfaceProbe()}
	if cfg.BackendConfigured() {
		a.remote, err = adapter.NewSupabaseBackend(cfg.Backend, log)
		if err != nil {
			return nil, fmt.Errorf("create remote backend: %w", err)
		}
		probes = append(probes, connectivity.NewBackendProbe(a.remote))
	} else {
		log.Warn().Str("func", "NewApp").Msg("no backend configured, running offline")
	}

	a.monitor = connectivity.NewMonitor(false, log.Component("connectivity"))
	a.prober = connectivity.NewProber(a.monitor, cfg.Backend.ProbeInterval, cfg.Backend.RequestTimeout, log.Component("connectivity"), probes...)

	a.sync = service.NewSyncCoordinator(a.remote, a.storages.Queue, a.storages.Cache, a.monitor, clock,
		service.CoordinatorConfig{DrainRate: cfg.Workers.DrainRate}, log)

	a.relay, err = mesh.NewRelay(a.deviceID, a.medium, mesh.ConfigFrom(cfg.Mesh), log)
	if err != nil {
		return nil, fmt.Errorf("create mesh relay: %w", err)
	}
	fallback := models.Location{Latitude: cfg.Mesh.Latitude, Longitude: cfg.Mesh.Longitude}
	a.relay.UpdateLocation(resolveLocation(ctx, a.storages.State, fallback, log))

	a.bridge = newMeshBridge(a.relay, a.online, log)
	a.sync.OnConnectionChange(a.bridge.onConnectionChange)
	a.sync.OnQueued(a.bridge.onQueued)

	maintenance, err := workers.NewMaintenance(cfg.Workers.MaintenanceSchedule, log.Component("maintenance"),
		maintenanceJobs(a.storages, clock, cfg.Workers.PurgeSyncedAfter, log)...)
	if err != nil {
		return nil, err
	}

	a.workers = workers.NewWorkers(
		a.bridge,
		a.sync,
		a.prober,
		service.NewRefreshJob(a.sync, cfg.Workers.RefreshInterval, log),
		maintenance,
	)

	if cfg.Status.HTTPAddress != "" {
		h := handler.NewHandler(a.sync, a.relay, build, log, handler.WithLocationHook(locationSaver(a.storages.State, log)))
		a.server, err = server.NewServer(h.Init(), cfg.Status, log)
		if err != nil {
			return nil, fmt.Errorf("create status server: %w", err)
		}
	}

	log.Info().Str("func", "NewApp").Bool("backend", a.remote != nil).Msg("agent assembled")
	return a, nil
}

// DeviceID returns the id the agent announces on the mesh.
func (a *App) DeviceID() string { return a.deviceID }

// Addr returns the status API address, or "" while it is not listening.
func (a *App) Addr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// Run starts every component, blocks until ctx is cancelled or the status
// API fails, then stops them in reverse order and releases all resources.
// An App runs once.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	a.prober.Check(ctx)
	a.workers.Start(ctx)
	a.logger.Info().Str("func", "App.Run").Bool("online", a.online()).Msg("agent started")

	var runErr error
	if a.server != nil {
		runErr = a.server.RunServer(ctx)
	} else {
		<-ctx.Done()
	}

	a.logger.Info().Str("func", "App.Run").Msg("agent stopping")
	a.workers.Stop()

	if err := a.close(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

func (a *App) online() bool {
	return a.remote != nil && a.monitor.IsOnline()
}

func (a *App) close() error {
	var errs []error
	if a.medium != nil {
		errs = append(errs, a.medium.Close())
	}
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.storages != nil {
		errs = append(errs, a.storages.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Err(err).Str("func", "App.close").Msg("failed to release resources")
		return err
	}
	return nil
}
