// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
)

const (
	restPrefix      = "/rest/v1/"
	realtimePath    = "/realtime/v1/websocket"
	realtimeVersion = "1.0.0"

	serviceRole = "service_role"
)

type supabaseBackend struct {
	client   *utils.HTTPClient
	breaker  *CircuitBreaker
	realtime *realtimeClient

	logger *logger.Logger
}

type options struct {
	breaker   BreakerConfig
	heartbeat time.Duration
	redialMin time.Duration
	redialMax time.Duration
	clock     utils.Clock
	ids       utils.IDGenerator
}

// Option customises [NewSupabaseBackend].
type Option func(*options)

// WithBreakerConfig replaces [DefaultBreakerConfig].
func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithHeartbeat sets the realtime heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// WithRedialBackoff bounds the delay between realtime reconnect attempts.
// The delay starts at minDelay and doubles up to maxDelay.
func WithRedialBackoff(minDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.redialMin = minDelay
		o.redialMax = maxDelay
	}
}

// WithClock sets the clock used by the breaker and key inspection.
func WithClock(clock utils.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// NewSupabaseBackend constructs a [RemoteBackend] for the Supabase project at
// cfg.URL. The API key is sent both as the apikey header and as a bearer
// token. Its claims are inspected once and suspicious keys are logged.
//
// Returns [ErrNotConfigured] when cfg.URL is empty.
func NewSupabaseBackend(cfg config.Backend, log *logger.Logger, opts ...Option) (RemoteBackend, error) {
	o := options{
		breaker:   DefaultBreakerConfig(),
		heartbeat: defaultHeartbeat,
		redialMin: defaultRedialMin,
		redialMax: defaultRedialMax,
		clock:     utils.SystemClock{},
		ids:       utils.NewUUIDGenerator(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNotConfigured
	}
	baseURL, err := normalizeBaseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	wsURL, err := realtimeURL(baseURL, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	log = log.Component("adapter")
	inspectAPIKey(cfg.APIKey, o.clock.Now(), log)

	client := utils.NewHTTPClient(baseURL, cfg.RequestTimeout)
	client.
		SetHeader("apikey", cfg.APIKey).
		SetAuthToken(cfg.APIKey)

	return &supabaseBackend{
		client:   client,
		breaker:  NewCircuitBreaker(o.breaker, o.clock),
		realtime: newRealtimeClient(wsURL, o.heartbeat, o.redialMin, o.redialMax, o.ids, log),
		logger:   log,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func inspectAPIKey(key string, now time.Time, log *logger.Logger) {
	claims, err := utils.ParseAPIKeyClaims(key)
	if err != nil {
		log.Warn().Err(err).Str("func", "adapter.inspectAPIKey").Msg("backend api key is not a jwt, requests may be rejected")
		return
	}
	if claims.Role == serviceRole {
		log.Warn().Str("func", "adapter.inspectAPIKey").Msg("service role key configured on a device, row level security is bypassed")
	}
	if claims.Expired(now) {
		log.Warn().Str("func", "adapter.inspectAPIKey").Time("expired_at", claims.ExpiresAt).Msg("backend api key has expired")
	}
}

// Insert implements [RemoteBackend]. It POSTs record to /rest/v1/{table} and
// asks PostgREST to return the stored row.
func (s *supabaseBackend) Insert(ctx context.Context, table string, record models.Payload) (models.Payload, error) {
	if table == "" {
		return nil, ErrEmptyTableName
	}

	resp, err := s.do(ctx, "insert "+table, func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Prefer", "return=representation").
			SetBody(record).
			Post(restPrefix + table)
	})
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(rows) == 0 {
		// Row level security may hide the inserted row from the inserter.
		return record.Clone(), nil
	}
	return rows[0], nil
}

// Select implements [RemoteBackend]. filter is rendered as PostgREST query
// parameters.
func (s *supabaseBackend) Select(ctx context.Context, table string, filter models.FilterSpec) ([]models.Payload, error) {
	if table == "" {
		return nil, ErrEmptyTableName
	}

	resp, err := s.do(ctx, "select "+table, func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetQueryParamsFromValues(selectQuery(filter)).
			Get(restPrefix + table)
	})
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	if rows == nil {
		rows = []models.Payload{}
	}
	return rows, nil
}

// Subscribe implements [RemoteBackend] over the Realtime websocket. The
// connection is opened on the first subscription.
func (s *supabaseBackend) Subscribe(ctx context.Context, table string, filter models.EventFilter, handler func(models.ChangeEvent)) (Subscription, error) {
	if table == "" {
		return Subscription{}, ErrEmptyTableName
	}
	return s.realtime.subscribe(ctx, table, filter, handler)
}

// Unsubscribe implements [RemoteBackend].
func (s *supabaseBackend) Unsubscribe(_ context.Context, sub Subscription) error {
	return s.realtime.unsubscribe(sub)
}

// Ping implements [RemoteBackend]. It bypasses the circuit breaker and
// closes it on success, so a recovered link is usable immediately.
func (s *supabaseBackend) Ping(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(restPrefix)
	if err != nil {
		return mapTransportError("ping", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	s.breaker.Reset()
	return nil
}

// Close implements [RemoteBackend].
func (s *supabaseBackend) Close() error {
	return s.realtime.close()
}

// do runs send behind the circuit breaker and maps its outcome. Caller
// cancellation is not held against the backend.
func (s *supabaseBackend) do(ctx context.Context, op string, send func() (*resty.Response, error)) (*resty.Response, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}

	resp, err := send()
	if err != nil {
		if ctx.Err() == nil {
			s.breaker.RecordFailure()
		}
		return nil, mapTransportError(op, err)
	}

	if err = mapHTTPError(resp); err != nil {
		if errors.Is(err, ErrTransient) {
			s.breaker.RecordFailure()
		} else {
			s.breaker.RecordSuccess()
		}
		s.logger.Debug().Err(err).Str("func", "supabaseBackend.do").Str("op", op).Msg("backend request failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.breaker.RecordSuccess()
	return resp, nil
}

// selectQuery renders filter as PostgREST parameters:
// select, col=eq.value, order=col.asc|desc and limit.
func selectQuery(filter models.FilterSpec) url.Values {
	params := url.Values{}

	sel := filter.Select
	if sel == "" {
		sel = "*"
	}
	params.Set("select", sel)

	for col, val := range filter.Eq {
		params.Add(col, "eq."+val)
	}

	if filter.Order != nil && filter.Order.Column != "" {
		dir := "desc"
		if filter.Order.Ascending {
			dir = "asc"
		}
		params.Set("order", filter.Order.Column+"."+dir)
	}

	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	return params
}

// decodeRows accepts both the array PostgREST returns by default and a single
// object.
func decodeRows(body []byte) ([]models.Payload, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var row models.Payload
		if err := json.Unmarshal([]byte(trimmed), &row); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return []models.Payload{row}, nil
	}

	var rows []models.Payload
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return rows, nil
}
