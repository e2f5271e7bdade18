// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAPIKey is returned when a backend API key is not a JWT.
var ErrInvalidAPIKey = errors.New("api key is not a valid jwt")

// APIKeyClaims is the subset of a Supabase API key's claims the agent
// inspects at startup.
type APIKeyClaims struct {
	Role      string
	Issuer    string
	ExpiresAt time.Time
}

// Expired reports whether the key had expired at now. Keys without an exp
// claim never expire.
func (c APIKeyClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseAPIKeyClaims decodes the claims of a backend API key without
// verifying its signature. The agent never holds the signing secret; this
// only surfaces obviously wrong keys (a service-role key on a device, an
// expired key) before the first request.
func ParseAPIKeyClaims(key string) (APIKeyClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(key, jwt.MapClaims{})
	if err != nil {
		return APIKeyClaims{}, fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return APIKeyClaims{}, ErrInvalidAPIKey
	}

	out := APIKeyClaims{}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if iss, err := claims.GetIssuer(); err == nil {
		out.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
