// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and string
// durations.
type StructuredJSONConfig struct {
	App struct {
		DeviceID string `json:"device_id"`
		LogFile  string `json:"log_file"`
		Reset    bool   `json:"reset"`
	} `json:"app,omitempty"`

	Backend struct {
		URL            string   `json:"url"`
		APIKey         string   `json:"api_key"`
		RequestTimeout Duration `json:"request_timeout"`
		ProbeInterval  Duration `json:"probe_interval"`
	} `json:"backend,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`

		Medium struct {
			Driver string `json:"driver"`
			DSN    string `json:"dsn"`
		} `json:"medium,omitempty"`
	} `json:"storage,omitempty"`

	Mesh struct {
		RangeMeters        float64  `json:"range_meters"`
		NearbyMeters       float64  `json:"nearby_meters"`
		BroadcastInterval  Duration `json:"broadcast_interval"`
		DiscoveryInterval  Duration `json:"discovery_interval"`
		PollInterval       Duration `json:"poll_interval"`
		PresenceTTL        Duration `json:"presence_ttl"`
		RequestTTL         Duration `json:"request_ttl"`
		PushTTL            Duration `json:"push_ttl"`
		MaxLocalRecords    int      `json:"max_local_records"`
		MaxReceivedRecords int      `json:"max_received_records"`
		Latitude           float64  `json:"latitude"`
		Longitude          float64  `json:"longitude"`
	} `json:"mesh,omitempty"`

	Workers struct {
		RefreshInterval     Duration `json:"refresh_interval"`
		MaintenanceSchedule string   `json:"maintenance_schedule"`
		PurgeSyncedAfter    Duration `json:"purge_synced_after"`
		DrainRate           float64  `json:"drain_rate"`
	} `json:"workers,omitempty"`

	Status struct {
		HTTPAddress string `json:"http_address"`
	} `json:"status,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			DeviceID: jsonCfg.App.DeviceID,
			LogFile:  jsonCfg.App.LogFile,
			Reset:    jsonCfg.App.Reset,
		},
		Backend: Backend{
			URL:            jsonCfg.Backend.URL,
			APIKey:         jsonCfg.Backend.APIKey,
			RequestTimeout: time.Duration(jsonCfg.Backend.RequestTimeout),
			ProbeInterval:  time.Duration(jsonCfg.Backend.ProbeInterval),
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
			Medium: Medium{
				Driver: jsonCfg.Storage.Medium.Driver,
				DSN:    jsonCfg.Storage.Medium.DSN,
			},
		},
		Mesh: Mesh{
			RangeMeters:        jsonCfg.Mesh.RangeMeters,
			NearbyMeters:       jsonCfg.Mesh.NearbyMeters,
			BroadcastInterval:  time.Duration(jsonCfg.Mesh.BroadcastInterval),
			DiscoveryInterval:  time.Duration(jsonCfg.Mesh.DiscoveryInterval),
			PollInterval:       time.Duration(jsonCfg.Mesh.PollInterval),
			PresenceTTL:        time.Duration(jsonCfg.Mesh.PresenceTTL),
			RequestTTL:         time.Duration(jsonCfg.Mesh.RequestTTL),
			PushTTL:            time.Duration(jsonCfg.Mesh.PushTTL),
			MaxLocalRecords:    jsonCfg.Mesh.MaxLocalRecords,
			MaxReceivedRecords: jsonCfg.Mesh.MaxReceivedRecords,
			Latitude:           jsonCfg.Mesh.Latitude,
			Longitude:          jsonCfg.Mesh.Longitude,
		},
		Workers: Workers{
			RefreshInterval:     time.Duration(jsonCfg.Workers.RefreshInterval),
			MaintenanceSchedule: jsonCfg.Workers.MaintenanceSchedule,
			PurgeSyncedAfter:    time.Duration(jsonCfg.Workers.PurgeSyncedAfter),
			DrainRate:           jsonCfg.Workers.DrainRate,
		},
		Status: Status{
			HTTPAddress: jsonCfg.Status.HTTPAddress,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
