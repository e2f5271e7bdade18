// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signKey(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestParseAPIKeyClaims_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	key := signKey(t, jwt.MapClaims{"role": "anon", "iss": "supabase", "exp": exp.Unix()})

	claims, err := ParseAPIKeyClaims(key)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if claims.Role != "anon" {
		t.Errorf("expected role anon, got %s", claims.Role)
	}
	if claims.Issuer != "supabase" {
		t.Errorf("expected issuer supabase, got %s", claims.Issuer)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("expected exp %v, got %v", exp, claims.ExpiresAt)
	}
	if claims.Expired(time.Now()) {
		t.Error("expected key not expired")
	}
}

func TestParseAPIKeyClaims_Expired(t *testing.T) {
	key := signKey(t, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(-time.Minute).Unix()})

	claims, err := ParseAPIKeyClaims(key)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !claims.Expired(time.Now()) {
		t.Error("expected key expired")
	}
}

func TestParseAPIKeyClaims_NoExpiryNeverExpires(t *testing.T) {
	key := signKey(t, jwt.MapClaims{"role": "anon"})

	claims, err := ParseAPIKeyClaims(key)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if claims.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("expected key without exp to never expire")
	}
}

func TestParseAPIKeyClaims_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not a jwt", "plain-api-key"},
		{"bad segments", "a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAPIKeyClaims(tt.key)
			if !errors.Is(err, ErrInvalidAPIKey) {
				t.Errorf("expected ErrInvalidAPIKey, got %v", err)
			}
		})
	}
}
