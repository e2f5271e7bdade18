// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// newTestBackend creates a supabaseBackend pointed at a test server.
func newTestBackend(t *testing.T, serverURL string, opts ...Option) *supabaseBackend {
	t.Helper()
	cfg := config.Backend{URL: serverURL, APIKey: testAPIKey, RequestTimeout: 2 * time.Second}

	b, err := NewSupabaseBackend(cfg, logger.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b.(*supabaseBackend)
}

func assertAuthHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, testAPIKey, r.Header.Get("apikey"))
	assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
}

// ── Insert ──────────────────────────────────────────────────────────────────

func TestInsert_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/help_requests", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assertAuthHeaders(t, r)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "trapped on roof", body["message"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":42,"message":"trapped on roof"}]`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	got, err := b.Insert(context.Background(), "help_requests", models.Payload{"message": "trapped on roof"})

	require.NoError(t, err)
	assert.Equal(t, "42", got.ID())
	assert.Equal(t, "trapped on roof", got["message"])
}

func TestInsert_EmptyRepresentation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	record := models.Payload{"message": "road blocked"}
	got, err := b.Insert(context.Background(), "road_reports", record)

	require.NoError(t, err)
	assert.Equal(t, record, got)
	got["extra"] = true
	assert.NotContains(t, record, "extra")
}

func TestInsert_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, ErrRejected},
		{"conflict", http.StatusConflict, ErrRejected},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"internal", http.StatusInternalServerError, ErrTransient},
		{"unavailable", http.StatusServiceUnavailable, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			b := newTestBackend(t, srv.URL)
			_, err := b.Insert(context.Background(), "help_requests", models.Payload{"message": "x"})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInsert_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	b := newTestBackend(t, url)
	_, err := b.Insert(context.Background(), "help_requests", models.Payload{"message": "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestInsert_EmptyTable(t *testing.T) {
	b := newTestBackend(t, "http://127.0.0.1:1")
	_, err := b.Insert(context.Background(), "", models.Payload{})
	assert.ErrorIs(t, err, ErrEmptyTableName)
}

// ── Select ──────────────────────────────────────────────────────────────────

func TestSelect_RendersFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/help_requests", r.URL.Path)
		assertAuthHeaders(t, r)

		q := r.URL.Query()
		assert.Equal(t, "id,message", q.Get("select"))
		assert.Equal(t, "eq.NCR", q.Get("region"))
		assert.Equal(t, "eq.pending", q.Get("status"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"message":"a"},{"id":2,"message":"b"}]`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	rows, err := b.Select(context.Background(), "help_requests", models.FilterSpec{
		Select: "id,message",
		Eq:     map[string]string{"region": "NCR", "status": "pending"},
		Order:  &models.Order{Column: "created_at"},
		Limit:  10,
	})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].ID())
	assert.Equal(t, "b", rows[1]["message"])
}

func TestSelect_EmptyResultIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	rows, err := b.Select(context.Background(), "help_requests", models.FilterSpec{})

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSelect_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	_, err := b.Select(context.Background(), "help_requests", models.FilterSpec{})

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSelectQuery_Defaults(t *testing.T) {
	q := selectQuery(models.FilterSpec{Order: &models.Order{Column: "created_at", Ascending: true}})

	assert.Equal(t, "*", q.Get("select"))
	assert.Equal(t, "created_at.asc", q.Get("order"))
	assert.Empty(t, q.Get("limit"))
}

// ── Ping and circuit breaker ────────────────────────────────────────────────

func TestPing(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/", r.URL.Path)
		assertAuthHeaders(t, r)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	require.NoError(t, b.Ping(context.Background()))

	status.Store(http.StatusUnauthorized)
	assert.ErrorIs(t, b.Ping(context.Background()), ErrUnauthorized)
}

func TestBreaker_OpensAfterTransientFailures(t *testing.T) {
	var selects atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v1/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		selects.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL, WithBreakerConfig(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Select(ctx, "help_requests", models.FilterSpec{})
		require.ErrorIs(t, err, ErrTransient)
	}
	assert.Equal(t, CircuitOpen, b.breaker.State())

	_, err := b.Select(ctx, "help_requests", models.FilterSpec{})
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), selects.Load(), "open circuit must not reach the server")

	require.NoError(t, b.Ping(ctx))
	assert.Equal(t, CircuitClosed, b.breaker.State())

	_, _ = b.Select(ctx, "help_requests", models.FilterSpec{})
	assert.Equal(t, int32(3), selects.Load())
}

func TestBreaker_RejectionsDoNotOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL, WithBreakerConfig(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}))
	for i := 0; i < 3; i++ {
		_, err := b.Insert(context.Background(), "help_requests", models.Payload{})
		require.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, CircuitClosed, b.breaker.State())
}

// ── Construction ────────────────────────────────────────────────────────────

func TestNewSupabaseBackend_NotConfigured(t *testing.T) {
	_, err := NewSupabaseBackend(config.Backend{}, logger.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewSupabaseBackend_InvalidURL(t *testing.T) {
	_, err := NewSupabaseBackend(config.Backend{URL: "ftp://example.com", APIKey: "k"}, logger.Nop())
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := normalizeBaseURL("  xyz.supabase.co/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://xyz.supabase.co", got)

	_, err = normalizeBaseURL("")
	assert.Error(t, err)
}

func TestRealtimeURL(t *testing.T) {
	got, err := realtimeURL("https://xyz.supabase.co", "anon")
	require.NoError(t, err)
	assert.Equal(t, "wss://xyz.supabase.co/realtime/v1/websocket?apikey=anon&vsn=1.0.0", got)

	got, err = realtimeURL("http://127.0.0.1:54321", "anon")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:54321/realtime/v1/websocket?apikey=anon&vsn=1.0.0", got)
}
