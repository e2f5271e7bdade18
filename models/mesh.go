// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// EnvelopeKind is the type of message placed into the shared medium.
type EnvelopeKind string

const (
	KindPresence    EnvelopeKind = "presence"
	KindDataRequest EnvelopeKind = "data_request"
	KindDataPush    EnvelopeKind = "data_push"
)

// RelayEnvelope is a typed, time-boxed message in the shared medium. SentAt is
// used solely to compute expiry: the envelope is dead once SentAt+TTL has
// passed, whether or not anyone deleted it.
type RelayEnvelope struct {
	From    string          `json:"from_device"`
	To      string          `json:"to_device,omitempty"`
	Kind    EnvelopeKind    `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
	TTL     time.Duration   `json:"ttl"`
}

// ExpiresAt returns the moment the envelope stops being visible.
func (e RelayEnvelope) ExpiresAt() time.Time {
	return e.SentAt.Add(e.TTL)
}

// Expired reports whether the envelope is dead at now.
func (e RelayEnvelope) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Broadcast reports whether the envelope is addressed to every device.
func (e RelayEnvelope) Broadcast() bool {
	return e.To == ""
}

// Presence announces a device, where it is and how far it listens.
type Presence struct {
	DeviceID    string    `json:"device_id"`
	Location    Location  `json:"location"`
	BroadcastAt time.Time `json:"broadcast_at"`
	RangeMeters float64   `json:"range_meters"`
}

// DataPush carries a device's locally held records.
type DataPush struct {
	Records []MeshRecord `json:"records"`
}

// MeshPeer is a device seen during the current discovery cycle. Peers are
// recomputed from scratch each cycle.
type MeshPeer struct {
	DeviceID       string    `json:"device_id"`
	Location       Location  `json:"location"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	DistanceMeters float64   `json:"distance_meters"`
}

// MeshRecord is an emergency record relayed between co-located devices.
// A record with both coordinates at zero carries no location.
type MeshRecord struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id,omitempty"`
	UserName       string    `json:"user_name,omitempty"`
	Message        string    `json:"message"`
	Role           string    `json:"role,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Region         string    `json:"region,omitempty"`
	Status         string    `json:"status,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	AccessVehicles []string  `json:"access_vehicles,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Located reports whether the record carries coordinates.
func (r MeshRecord) Located() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// Location returns the record's coordinates.
func (r MeshRecord) Location() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}
