// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package mesh

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sndie3/LABAN/models"
	"github.com/tidwall/gjson"
)

// Medium key layout. Envelopes are namespaced by kind and originating device:
//
//	mesh:presence:{device}
//	mesh:data_request:{from}:{to}
//	mesh:data_push:{device}
const (
	presencePrefix = "mesh:presence:"
	requestPrefix  = "mesh:data_request:"
	pushPrefix     = "mesh:data_push:"
)

func presenceKey(deviceID string) string { return presencePrefix + deviceID }

func requestKey(from, to string) string { return requestPrefix + from + ":" + to }

func pushKey(deviceID string) string { return pushPrefix + deviceID }

// requestAddressedTo reports whether a request key targets deviceID.
func requestAddressedTo(key, deviceID string) bool {
	return strings.HasSuffix(key, ":"+deviceID)
}

func newEnvelope(from, to string, kind models.EnvelopeKind, payload any, sentAt time.Time, ttl time.Duration) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		raw = b
	}

	return json.Marshal(models.RelayEnvelope{
		From:    from,
		To:      to,
		Kind:    kind,
		Payload: raw,
		SentAt:  sentAt,
		TTL:     ttl,
	})
}

// decodeEnvelope checks the header fields before decoding so entries written
// by other protocols sharing the medium are rejected cheaply.
func decodeEnvelope(raw []byte, want models.EnvelopeKind) (models.RelayEnvelope, error) {
	if !gjson.ValidBytes(raw) {
		return models.RelayEnvelope{}, fmt.Errorf("%w: not json", ErrEnvelopeParse)
	}

	header := gjson.GetManyBytes(raw, "kind", "from_device", "sent_at")
	if kind := header[0].String(); kind != string(want) {
		return models.RelayEnvelope{}, fmt.Errorf("%w: kind %q, want %q", ErrEnvelopeParse, kind, want)
	}
	if header[1].String() == "" {
		return models.RelayEnvelope{}, fmt.Errorf("%w: missing sender", ErrEnvelopeParse)
	}
	if !header[2].Exists() {
		return models.RelayEnvelope{}, fmt.Errorf("%w: missing timestamp", ErrEnvelopeParse)
	}

	var env models.RelayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.RelayEnvelope{}, fmt.Errorf("%w: %w", ErrEnvelopeParse, err)
	}
	return env, nil
}

func decodePayload[T any](env models.RelayEnvelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, fmt.Errorf("%w: empty %s payload", ErrEnvelopeParse, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: %s payload: %w", ErrEnvelopeParse, env.Kind, err)
	}
	return v, nil
}
