// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "fmt"

// Payload is a single JSON object as exchanged with the remote backend:
// a help request, a road report or any other row.
type Payload map[string]any

// ID returns the "id" field of the payload rendered as a string, or an empty
// string when the field is absent. Backends return numeric or uuid ids, so
// both are accepted.
func (p Payload) ID() string {
	v, ok := p["id"]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

// Clone returns a shallow copy so callers can add fields without mutating the
// original payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}
