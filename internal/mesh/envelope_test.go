// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package mesh

import (
	"testing"
	"time"

	"github.com/sndie3/LABAN/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	presence := models.Presence{DeviceID: "a", Location: models.Location{Latitude: 14.6, Longitude: 121}, RangeMeters: 500}

	raw, err := newEnvelope("a", "", models.KindPresence, presence, sentAt, 30*time.Second)
	require.NoError(t, err)

	env, err := decodeEnvelope(raw, models.KindPresence)
	require.NoError(t, err)
	assert.Equal(t, "a", env.From)
	assert.True(t, env.Broadcast())
	assert.True(t, sentAt.Equal(env.SentAt))
	assert.Equal(t, 30*time.Second, env.TTL)

	got, err := decodePayload[models.Presence](env)
	require.NoError(t, err)
	assert.Equal(t, presence.Location, got.Location)
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "hello"},
		{name: "foreign object", raw: `{"deviceId":"x","type":"mesh_presence"}`},
		{name: "other kind", raw: `{"kind":"data_push","from_device":"x","sent_at":"2026-03-01T08:00:00Z"}`},
		{name: "no sender", raw: `{"kind":"presence","sent_at":"2026-03-01T08:00:00Z"}`},
		{name: "no timestamp", raw: `{"kind":"presence","from_device":"x"}`},
		{name: "bad ttl", raw: `{"kind":"presence","from_device":"x","sent_at":"2026-03-01T08:00:00Z","ttl":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnvelope([]byte(tt.raw), models.KindPresence)
			assert.ErrorIs(t, err, ErrEnvelopeParse)
		})
	}
}

func TestDecodePayload_Empty(t *testing.T) {
	_, err := decodePayload[models.DataPush](models.RelayEnvelope{Kind: models.KindDataPush})
	assert.ErrorIs(t, err, ErrEnvelopeParse)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "mesh:presence:a", presenceKey("a"))
	assert.Equal(t, "mesh:data_request:a:b", requestKey("a", "b"))
	assert.Equal(t, "mesh:data_push:a", pushKey("a"))
	assert.True(t, requestAddressedTo(requestKey("a", "b"), "b"))
	assert.False(t, requestAddressedTo(requestKey("a", "b"), "a"))
}
