// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// validate checks that the merged [StructuredConfig] is usable before
// defaults are applied. Only source-level problems are reported here.
func (cfg *StructuredConfig) validate() error {
	if cfg.Mesh.MaxLocalRecords < 0 {
		return fmt.Errorf("%w: max local records must not be negative", ErrInvalidMeshConfigs)
	}
	if cfg.Mesh.MaxReceivedRecords < 0 {
		return fmt.Errorf("%w: max received records must not be negative", ErrInvalidMeshConfigs)
	}
	return nil
}

func (cfg *AgentConfig) validate() error {
	if cfg.Backend.URL != "" {
		u, err := url.Parse(cfg.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: malformed backend url %q", ErrInvalidBackendConfigs, cfg.Backend.URL)
		}
		if cfg.Backend.APIKey == "" {
			return fmt.Errorf("%w: api key is required with a backend url", ErrInvalidBackendConfigs)
		}
	}

	if cfg.Storage.DB.DSN == "" {
		return fmt.Errorf("%w: empty database dsn", ErrInvalidStorageConfigs)
	}
	switch cfg.Storage.Medium.Driver {
	case MediumMemory:
	case MediumSQLite, MediumPostgres, MediumRedis:
		if cfg.Storage.Medium.DSN == "" {
			return fmt.Errorf("%w: medium %s needs a dsn", ErrInvalidStorageConfigs, cfg.Storage.Medium.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown medium driver %q", ErrInvalidStorageConfigs, cfg.Storage.Medium.Driver)
	}

	m := cfg.Mesh
	if m.RangeMeters <= 0 || m.NearbyMeters <= 0 {
		return fmt.Errorf("%w: ranges must be positive", ErrInvalidMeshConfigs)
	}
	if m.BroadcastInterval <= 0 || m.DiscoveryInterval <= 0 || m.PollInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidMeshConfigs)
	}
	if m.PresenceTTL <= 0 || m.RequestTTL <= 0 || m.PushTTL <= 0 {
		return fmt.Errorf("%w: ttls must be positive", ErrInvalidMeshConfigs)
	}
	if m.Latitude < -90 || m.Latitude > 90 || m.Longitude < -180 || m.Longitude > 180 {
		return fmt.Errorf("%w: location out of range", ErrInvalidMeshConfigs)
	}

	if cfg.Workers.RefreshInterval <= 0 || cfg.Workers.DrainRate <= 0 {
		return fmt.Errorf("%w: refresh interval and drain rate must be positive", ErrInvalidWorkerConfigs)
	}
	if _, err := cron.ParseStandard(cfg.Workers.MaintenanceSchedule); err != nil {
		return fmt.Errorf("%w: maintenance schedule: %v", ErrInvalidWorkerConfigs, err)
	}

	return nil
}
