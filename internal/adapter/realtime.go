// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/models"
	"github.com/tidwall/gjson"
)

const (
	defaultHeartbeat = 30 * time.Second
	defaultRedialMin = time.Second
	defaultRedialMax = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second

	phoenixTopic   = "phoenix"
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventPgChanges = "postgres_changes"
	eventAll       = "*"
	realtimeSchema = "public"
	realtimePrefix = "realtime"
	replyStatusOK  = "ok"
)

// phoenixMessage is one frame of the Phoenix channel protocol.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

// changePayload is a row change as Realtime sends it. The timestamp is parsed
// leniently since its precision varies between server versions.
type changePayload struct {
	Type            string         `json:"type"`
	Table           string         `json:"table"`
	Record          models.Payload `json:"record"`
	OldRecord       models.Payload `json:"old_record"`
	CommitTimestamp string         `json:"commit_timestamp"`
}

type realtimeListener struct {
	event   string
	handler func(models.ChangeEvent)
}

type realtimeTopic struct {
	joinRef   string
	listeners map[string]realtimeListener
}

type realtimeClient struct {
	url       string
	dialer    websocket.Dialer
	heartbeat time.Duration
	redialMin time.Duration
	redialMax time.Duration
	ids       utils.IDGenerator
	logger    *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	ref    int
	topics map[string]*realtimeTopic
	subs   map[string]string
	// redial is non-nil while a reconnect loop is pending
	redial chan struct{}
}

func newRealtimeClient(wsURL string, heartbeat, redialMin, redialMax time.Duration, ids utils.IDGenerator, log *logger.Logger) *realtimeClient {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if redialMin <= 0 {
		redialMin = defaultRedialMin
	}
	if redialMax < redialMin {
		redialMax = max(defaultRedialMax, redialMin)
	}
	return &realtimeClient{
		url:       wsURL,
		dialer:    websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		heartbeat: heartbeat,
		redialMin: redialMin,
		redialMax: redialMax,
		ids:       ids,
		logger:    log,
		topics:    make(map[string]*realtimeTopic),
		subs:      make(map[string]string),
	}
}

// realtimeURL derives the websocket endpoint from the project URL.
func realtimeURL(baseURL, apiKey string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + realtimePath
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", realtimeVersion)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// topicFor names the channel carrying changes of table, optionally narrowed
// by a row filter.
func topicFor(table string, filter models.EventFilter) string {
	topic := realtimePrefix + ":" + realtimeSchema + ":" + table
	if filter.Filter != "" {
		topic += ":" + filter.Filter
	}
	return topic
}

func normalizeEvent(event string) (string, error) {
	event = strings.ToUpper(strings.TrimSpace(event))
	switch event {
	case "":
		return eventAll, nil
	case eventAll, "INSERT", "UPDATE", "DELETE":
		return event, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, event)
	}
}

func (r *realtimeClient) subscribe(ctx context.Context, table string, filter models.EventFilter, handler func(models.ChangeEvent)) (Subscription, error) {
	event, err := normalizeEvent(filter.Event)
	if err != nil {
		return Subscription{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err = r.connectLocked(ctx); err != nil {
		return Subscription{}, mapTransportError("realtime connect", err)
	}

	topic := topicFor(table, filter)
	t, ok := r.topics[topic]
	if !ok {
		t = &realtimeTopic{listeners: make(map[string]realtimeListener)}
		if err = r.joinLocked(topic, t); err != nil {
			r.dropLocked()
			return Subscription{}, mapTransportError("realtime join", err)
		}
		r.topics[topic] = t
	}

	id := r.ids.Generate()
	t.listeners[id] = realtimeListener{event: event, handler: handler}
	r.subs[id] = topic

	r.logger.Debug().Str("func", "realtimeClient.subscribe").Str("topic", topic).Str("subscription_id", id).Msg("subscribed")
	return Subscription{ID: id, Table: table, Topic: topic}, nil
}

func (r *realtimeClient) unsubscribe(sub Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.subs[sub.ID]
	if !ok {
		return nil
	}
	delete(r.subs, sub.ID)

	t := r.topics[topic]
	delete(t.listeners, sub.ID)
	if len(t.listeners) > 0 {
		return nil
	}
	delete(r.topics, topic)

	if r.conn == nil {
		return nil
	}
	if err := r.writeLocked(phoenixMessage{
		Topic:   topic,
		Event:   eventLeave,
		Payload: json.RawMessage(`{}`),
		Ref:     r.nextRefLocked(),
		JoinRef: t.joinRef,
	}); err != nil {
		r.dropLocked()
		return mapTransportError("realtime leave", err)
	}

	if len(r.topics) == 0 {
		r.closeLocked()
	}
	return nil
}

func (r *realtimeClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = make(map[string]*realtimeTopic)
	r.subs = make(map[string]string)
	if r.redial != nil {
		close(r.redial)
		r.redial = nil
	}
	return r.closeLocked()
}

// connectLocked dials when there is no live connection and rejoins every
// topic that still has listeners.
func (r *realtimeClient) connectLocked(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}

	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	done := make(chan struct{})
	r.conn = conn
	r.done = done

	go r.readLoop(conn, done)
	go r.heartbeatLoop(conn, done)

	for topic, t := range r.topics {
		if err = r.joinLocked(topic, t); err != nil {
			r.dropLocked()
			return err
		}
	}
	return nil
}

func (r *realtimeClient) joinLocked(topic string, t *realtimeTopic) error {
	ref := r.nextRefLocked()
	t.joinRef = ref
	return r.writeLocked(phoenixMessage{
		Topic:   topic,
		Event:   eventJoin,
		Payload: json.RawMessage(`{}`),
		Ref:     ref,
		JoinRef: ref,
	})
}

func (r *realtimeClient) writeLocked(msg phoenixMessage) error {
	if r.conn == nil {
		return ErrRealtimeNotJoined
	}
	if err := r.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return r.conn.WriteJSON(msg)
}

func (r *realtimeClient) nextRefLocked() string {
	r.ref++
	return strconv.Itoa(r.ref)
}

// closeLocked shuts the connection down cleanly.
func (r *realtimeClient) closeLocked() error {
	if r.conn == nil {
		return nil
	}

	conn := r.conn
	close(r.done)
	r.conn = nil

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("realtime close: %w", err)
	}
	return nil
}

// dropLocked abandons a broken connection. Topics are kept and, while any
// remain, a reconnect loop rejoins them.
func (r *realtimeClient) dropLocked() {
	if r.conn == nil {
		return
	}
	close(r.done)
	_ = r.conn.Close()
	r.conn = nil

	if len(r.topics) > 0 && r.redial == nil {
		r.redial = make(chan struct{})
		go r.redialLoop(r.redial)
	}
}

// redialLoop reconnects with exponential backoff until a connection is up,
// no topics are left or stop is closed.
func (r *realtimeClient) redialLoop(stop chan struct{}) {
	delay := r.redialMin
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		r.mu.Lock()
		if r.redial != stop {
			r.mu.Unlock()
			return
		}
		if r.conn != nil || len(r.topics) == 0 {
			r.redial = nil
			r.mu.Unlock()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := r.connectLocked(ctx)
		cancel()
		if err == nil {
			r.redial = nil
			r.logger.Info().Str("func", "realtimeClient.redialLoop").Int("attempt", attempt).Int("topics", len(r.topics)).Msg("realtime connection restored")
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		delay = min(delay*2, r.redialMax)
		r.logger.Debug().Err(err).Str("func", "realtimeClient.redialLoop").Int("attempt", attempt).Dur("retry_in", delay).Msg("realtime reconnect failed")
		timer.Reset(delay)
	}
}

func (r *realtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			if r.conn == conn {
				r.logger.Warn().Err(err).Str("func", "realtimeClient.readLoop").Msg("realtime connection lost")
				r.dropLocked()
			}
			r.mu.Unlock()
			return
		}

		select {
		case <-done:
			return
		default:
		}

		r.dispatch(data)
	}
}

func (r *realtimeClient) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != conn {
				r.mu.Unlock()
				return
			}
			err := r.writeLocked(phoenixMessage{
				Topic:   phoenixTopic,
				Event:   eventHeartbeat,
				Payload: json.RawMessage(`{}`),
				Ref:     r.nextRefLocked(),
			})
			if err != nil {
				r.logger.Warn().Err(err).Str("func", "realtimeClient.heartbeatLoop").Msg("heartbeat failed")
				r.dropLocked()
			}
			r.mu.Unlock()
		}
	}
}

// dispatch routes one inbound frame to the listeners of its topic. Both the
// legacy row-change frames and postgres_changes frames are understood.
func (r *realtimeClient) dispatch(data []byte) {
	topic := gjson.GetBytes(data, "topic").String()
	event := gjson.GetBytes(data, "event").String()

	switch event {
	case eventReply:
		if status := gjson.GetBytes(data, "payload.status").String(); status != "" && status != replyStatusOK {
			r.logger.Warn().Str("func", "realtimeClient.dispatch").Str("topic", topic).Str("status", status).
				Str("response", gjson.GetBytes(data, "payload.response").Raw).Msg("realtime request refused")
		}
		return
	case eventError, eventClose:
		r.logger.Warn().Str("func", "realtimeClient.dispatch").Str("topic", topic).Str("event", event).Msg("realtime channel closed by server")
		return
	}
	if topic == phoenixTopic {
		return
	}

	path := "payload"
	if event == eventPgChanges {
		path = "payload.data"
	}
	raw := gjson.GetBytes(data, path)
	if !raw.IsObject() {
		return
	}

	var change changePayload
	if err := json.Unmarshal([]byte(raw.Raw), &change); err != nil {
		r.logger.Warn().Err(err).Str("func", "realtimeClient.dispatch").Str("topic", topic).Msg("undecodable realtime change")
		return
	}
	changeType := change.Type
	if changeType == "" {
		changeType = event
	}

	ev := models.ChangeEvent{
		Type:      changeType,
		Table:     change.Table,
		Record:    change.Record,
		OldRecord: change.OldRecord,
	}
	if change.CommitTimestamp != "" {
		if at, err := time.Parse(time.RFC3339Nano, change.CommitTimestamp); err == nil {
			ev.At = at
		}
	}

	for _, l := range r.listenersFor(topic, changeType) {
		r.deliver(l, ev)
	}
}

func (r *realtimeClient) listenersFor(topic, changeType string) []realtimeListener {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[topic]
	if !ok {
		return nil
	}
	out := make([]realtimeListener, 0, len(t.listeners))
	for _, l := range t.listeners {
		if l.event == eventAll || l.event == changeType {
			out = append(out, l)
		}
	}
	return out
}

func (r *realtimeClient) deliver(l realtimeListener, ev models.ChangeEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("func", "realtimeClient.deliver").Interface("panic", p).Msg("realtime handler panicked")
		}
	}()
	l.handler(ev)
}
