// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the agent.
// It is populated by merging values from a .env file, environment variables,
// command-line flags and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env      : direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds process-level settings: device identity and log output.
	App App `envPrefix:"APP_"`

	// Backend holds the remote backend endpoint and probing settings.
	Backend Backend `envPrefix:"BACKEND_"`

	// Storage holds the private local database and the shared mesh medium.
	Storage Storage `envPrefix:"STORAGE_"`

	// Mesh holds the local relay timings, TTLs and ranges.
	Mesh Mesh `envPrefix:"MESH_"`

	// Workers holds background job settings.
	Workers Workers `envPrefix:"WORKERS_"`

	// Status holds the local status API listener.
	Status Status `envPrefix:"STATUS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds process-level settings.
type App struct {
	// DeviceID pins the relay identity. When empty a persisted or freshly
	// generated identifier is used.
	// Env: APP_DEVICE_ID
	DeviceID string `env:"DEVICE_ID"`

	// LogFile is the path of the device log file.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`

	// Reset wipes the local queue, cache and device state on startup.
	// Env: APP_RESET
	Reset bool `env:"RESET"`
}

// Backend holds the remote backend settings.
type Backend struct {
	// URL is the Supabase project URL (e.g. "https://xyz.supabase.co").
	// Env: BACKEND_URL
	URL string `env:"URL"`

	// APIKey is the project's anon key, sent as apikey and bearer token.
	// Env: BACKEND_API_KEY
	APIKey string `env:"API_KEY"`

	// RequestTimeout bounds a single REST call.
	// Env: BACKEND_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// ProbeInterval is how often connectivity is re-checked.
	// Env: BACKEND_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Storage groups the local storage backends.
type Storage struct {
	// DB is the device's private SQLite database.
	DB DB `envPrefix:"DB_"`

	// Medium is the storage shared with co-located devices.
	Medium Medium `envPrefix:"MEDIUM_"`
}

// DB holds the private local database settings.
type DB struct {
	// DSN is the SQLite file path (e.g. "/var/lib/laban/agent.db").
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Medium holds the shared medium settings.
type Medium struct {
	// Driver is one of "memory", "sqlite3", "pgx" or "redis".
	// Env: STORAGE_MEDIUM_DRIVER
	Driver string `env:"DRIVER"`

	// DSN is the driver-specific address: a shared SQLite file, a Postgres
	// connection string or a Redis address.
	// Env: STORAGE_MEDIUM_DSN
	DSN string `env:"DSN"`
}

// Mesh holds the local relay settings.
type Mesh struct {
	// RangeMeters is the declared discovery range.
	// Env: MESH_RANGE_METERS
	RangeMeters float64 `env:"RANGE_METERS"`

	// NearbyMeters is the radius for accepting relayed records.
	// Env: MESH_NEARBY_METERS
	NearbyMeters float64 `env:"NEARBY_METERS"`

	// Env: MESH_BROADCAST_INTERVAL
	BroadcastInterval time.Duration `env:"BROADCAST_INTERVAL"`
	// Env: MESH_DISCOVERY_INTERVAL
	DiscoveryInterval time.Duration `env:"DISCOVERY_INTERVAL"`
	// Env: MESH_POLL_INTERVAL
	PollInterval time.Duration `env:"POLL_INTERVAL"`

	// Env: MESH_PRESENCE_TTL
	PresenceTTL time.Duration `env:"PRESENCE_TTL"`
	// Env: MESH_REQUEST_TTL
	RequestTTL time.Duration `env:"REQUEST_TTL"`
	// Env: MESH_PUSH_TTL
	PushTTL time.Duration `env:"PUSH_TTL"`

	// MaxLocalRecords bounds the records a device shares.
	// Env: MESH_MAX_LOCAL_RECORDS
	MaxLocalRecords int `env:"MAX_LOCAL_RECORDS"`
	// MaxReceivedRecords bounds the records held from peers. The oldest go
	// first.
	// Env: MESH_MAX_RECEIVED_RECORDS
	MaxReceivedRecords int `env:"MAX_RECEIVED_RECORDS"`

	// Latitude and Longitude seed the device location until a fix arrives.
	// Env: MESH_LATITUDE, MESH_LONGITUDE
	Latitude  float64 `env:"LATITUDE"`
	Longitude float64 `env:"LONGITUDE"`
}

// Workers holds background job settings.
type Workers struct {
	// RefreshInterval is the offline cache re-serve period.
	// Env: WORKERS_REFRESH_INTERVAL
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL"`

	// MaintenanceSchedule is a cron spec for cache pruning and purging of
	// synced queue rows (e.g. "@every 10m").
	// Env: WORKERS_MAINTENANCE_SCHEDULE
	MaintenanceSchedule string `env:"MAINTENANCE_SCHEDULE"`

	// PurgeSyncedAfter is how long synced queue rows are kept.
	// Env: WORKERS_PURGE_SYNCED_AFTER
	PurgeSyncedAfter time.Duration `env:"PURGE_SYNCED_AFTER"`

	// DrainRate is the maximum number of queued submissions per second.
	// Env: WORKERS_DRAIN_RATE
	DrainRate float64 `env:"DRAIN_RATE"`
}

// Status holds the local status API settings.
type Status struct {
	// HTTPAddress is the listener in "host:port" form. Empty disables the API.
	// Env: STATUS_ADDRESS
	HTTPAddress string `env:"ADDRESS"`
}

// GetStructuredConfig loads, merges, and validates the configuration from
// all sources in the following priority order (last source wins for
// non-zero fields):
//  1. .env file
//  2. Environment variables
//  3. Command-line flags
//  4. JSON file (path resolved from sources 2 and 3)
func GetStructuredConfig(args []string) (*StructuredConfig, error) {
	return newConfigBuilder().
		withDotEnv(dotEnvPath()).
		withEnv().
		withFlags(args).
		withJSON().
		build()
}
