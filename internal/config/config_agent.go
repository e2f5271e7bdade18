// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"os"
	"time"
)

// Defaults applied by [GetAgentConfig] to zero-valued fields.
const (
	DefaultDatabaseDSN         = "laban-agent.db"
	DefaultMediumDriver        = MediumSQLite
	DefaultMediumDSN           = "laban-mesh.db"
	DefaultRequestTimeout      = 10 * time.Second
	DefaultProbeInterval       = 10 * time.Second
	DefaultRangeMeters         = 500
	DefaultNearbyMeters        = 1000
	DefaultBroadcastInterval   = 5 * time.Second
	DefaultDiscoveryInterval   = 3 * time.Second
	DefaultPollInterval        = 2 * time.Second
	DefaultPresenceTTL         = 30 * time.Second
	DefaultRequestTTL          = 10 * time.Second
	DefaultPushTTL             = 30 * time.Second
	DefaultMaxLocalRecords     = 200
	DefaultMaxReceivedRecords  = 1000
	DefaultRefreshInterval     = 30 * time.Second
	DefaultMaintenanceSchedule = "@every 10m"
	DefaultPurgeSyncedAfter    = 24 * time.Hour
	DefaultDrainRate           = 5
)

// Shared medium drivers.
const (
	MediumMemory   = "memory"
	MediumSQLite   = "sqlite3"
	MediumPostgres = "pgx"
	MediumRedis    = "redis"
)

// AgentConfig is the resolved configuration of one device agent: every
// source merged and every default applied.
type AgentConfig struct {
	App     App
	Backend Backend
	Storage Storage
	Mesh    Mesh
	Workers Workers
	Status  Status
}

// GetAgentConfig builds the agent configuration from os.Args, the process
// environment, an optional .env file and an optional JSON file.
func GetAgentConfig() (*AgentConfig, error) {
	return LoadAgentConfig(os.Args[1:])
}

// LoadAgentConfig is [GetAgentConfig] with explicit command-line arguments.
func LoadAgentConfig(args []string) (*AgentConfig, error) {
	structured, err := GetStructuredConfig(args)
	if err != nil {
		return nil, fmt.Errorf("error getting structured config: %w", err)
	}

	cfg := &AgentConfig{
		App:     structured.App,
		Backend: structured.Backend,
		Storage: structured.Storage,
		Mesh:    structured.Mesh,
		Workers: structured.Workers,
		Status:  structured.Status,
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// BackendConfigured reports whether a remote backend URL was provided.
// Without one the agent runs permanently offline.
func (cfg *AgentConfig) BackendConfigured() bool {
	return cfg.Backend.URL != ""
}

func (cfg *AgentConfig) applyDefaults() {
	if cfg.Storage.DB.DSN == "" {
		cfg.Storage.DB.DSN = DefaultDatabaseDSN
	}
	if cfg.Storage.Medium.Driver == "" {
		cfg.Storage.Medium.Driver = DefaultMediumDriver
	}
	if cfg.Storage.Medium.DSN == "" && cfg.Storage.Medium.Driver == MediumSQLite {
		cfg.Storage.Medium.DSN = DefaultMediumDSN
	}

	setDuration(&cfg.Backend.RequestTimeout, DefaultRequestTimeout)
	setDuration(&cfg.Backend.ProbeInterval, DefaultProbeInterval)

	if cfg.Mesh.RangeMeters == 0 {
		cfg.Mesh.RangeMeters = DefaultRangeMeters
	}
	if cfg.Mesh.NearbyMeters == 0 {
		cfg.Mesh.NearbyMeters = DefaultNearbyMeters
	}
	setDuration(&cfg.Mesh.BroadcastInterval, DefaultBroadcastInterval)
	setDuration(&cfg.Mesh.DiscoveryInterval, DefaultDiscoveryInterval)
	setDuration(&cfg.Mesh.PollInterval, DefaultPollInterval)
	setDuration(&cfg.Mesh.PresenceTTL, DefaultPresenceTTL)
	setDuration(&cfg.Mesh.RequestTTL, DefaultRequestTTL)
	setDuration(&cfg.Mesh.PushTTL, DefaultPushTTL)
	if cfg.Mesh.MaxLocalRecords == 0 {
		cfg.Mesh.MaxLocalRecords = DefaultMaxLocalRecords
	}
	if cfg.Mesh.MaxReceivedRecords == 0 {
		cfg.Mesh.MaxReceivedRecords = DefaultMaxReceivedRecords
	}

	setDuration(&cfg.Workers.RefreshInterval, DefaultRefreshInterval)
	setDuration(&cfg.Workers.PurgeSyncedAfter, DefaultPurgeSyncedAfter)
	if cfg.Workers.MaintenanceSchedule == "" {
		cfg.Workers.MaintenanceSchedule = DefaultMaintenanceSchedule
	}
	if cfg.Workers.DrainRate == 0 {
		cfg.Workers.DrainRate = DefaultDrainRate
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
