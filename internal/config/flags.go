// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags from args (without the program
// name).
//
// Flags:
//
//	-c/-config json file path with configs
//	-device-id relay device identifier
//	-log-file device log file path
//	-reset wipe local queue, cache and device state on startup
//	-backend-url remote backend URL
//	-api-key remote backend anon key
//	-request-timeout request timeout (e.g., "10s")
//	-probe-interval connectivity probe interval (e.g., "10s")
//	-d local database DSN
//	-medium-driver shared medium driver (memory, sqlite3, pgx, redis)
//	-medium-dsn shared medium address
//	-range mesh discovery range in meters
//	-nearby mesh acceptance radius in meters
//	-lat/-lon initial device location
//	-refresh-interval offline cache refresh interval
//	-a status API address in format [host]:[port]
func ParseFlags(args []string) (*StructuredConfig, error) {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)

	var statusAddress NetAddress
	var jsonConfigPath string
	var deviceID, logFile string
	var reset bool
	var backendURL, apiKey string
	var requestTimeout, probeInterval, refreshInterval time.Duration
	var databaseDSN string
	var mediumDriver, mediumDSN string
	var rangeMeters, nearbyMeters float64
	var latitude, longitude float64

	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&deviceID, "device-id", "", "Relay device identifier")
	fs.StringVar(&logFile, "log-file", "", "Device log file path")
	fs.BoolVar(&reset, "reset", false, "Wipe local offline data on startup")
	fs.StringVar(&backendURL, "backend-url", "", "Remote backend URL")
	fs.StringVar(&apiKey, "api-key", "", "Remote backend anon key")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 10s)")
	fs.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe interval (e.g., 10s)")
	fs.StringVar(&databaseDSN, "d", "", "Local database DSN")
	fs.StringVar(&mediumDriver, "medium-driver", "", "Shared medium driver: memory, sqlite3, pgx, redis")
	fs.StringVar(&mediumDSN, "medium-dsn", "", "Shared medium address")
	fs.Float64Var(&rangeMeters, "range", 0, "Mesh discovery range in meters")
	fs.Float64Var(&nearbyMeters, "nearby", 0, "Mesh acceptance radius in meters")
	fs.Float64Var(&latitude, "lat", 0, "Initial latitude")
	fs.Float64Var(&longitude, "lon", 0, "Initial longitude")
	fs.DurationVar(&refreshInterval, "refresh-interval", 0, "Offline cache refresh interval (e.g., 30s)")
	fs.Var(&statusAddress, "a", "Status API address host:port")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	return &StructuredConfig{
		App: App{
			DeviceID: deviceID,
			LogFile:  logFile,
			Reset:    reset,
		},
		Backend: Backend{
			URL:            backendURL,
			APIKey:         apiKey,
			RequestTimeout: requestTimeout,
			ProbeInterval:  probeInterval,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
			Medium: Medium{
				Driver: mediumDriver,
				DSN:    mediumDSN,
			},
		},
		Mesh: Mesh{
			RangeMeters:  rangeMeters,
			NearbyMeters: nearbyMeters,
			Latitude:     latitude,
			Longitude:    longitude,
		},
		Workers: Workers{
			RefreshInterval: refreshInterval,
		},
		Status: Status{
			HTTPAddress: statusAddress.String(),
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// An empty host binds all interfaces. It validates the port range, checks IP
// correctness unless host is "localhost", and returns an error if the format
// or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1-65535")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
