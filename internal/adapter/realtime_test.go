// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sndie3/LABAN/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRealtime is a minimal Realtime endpoint: it records every frame the
// client sends and hands the server side of each connection to the test.
type fakeRealtime struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	msgs  chan phoenixMessage
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	t.Helper()
	f := &fakeRealtime{
		conns: make(chan *websocket.Conn, 4),
		msgs:  make(chan phoenixMessage, 64),
	}
	upgrader := websocket.Upgrader{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != realtimePath {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, testAPIKey, r.URL.Query().Get("apikey"))
		assert.Equal(t, realtimeVersion, r.URL.Query().Get("vsn"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.conns <- conn

		for {
			var m phoenixMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			select {
			case f.msgs <- m:
			default:
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRealtime) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime connection")
		return nil
	}
}

// nextMessage returns the next frame that is not a heartbeat.
func (f *fakeRealtime) nextMessage(t *testing.T) phoenixMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-f.msgs:
			if m.Event == eventHeartbeat {
				continue
			}
			return m
		case <-deadline:
			t.Fatal("no realtime message")
			return phoenixMessage{}
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func receive(t *testing.T, events <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
		return models.ChangeEvent{}
	}
}

const (
	legacyUpdateFrame = `{"topic":"realtime:public:help_requests","event":"UPDATE","payload":{"type":"UPDATE","table":"help_requests","record":{"id":6,"status":"rescued"}},"ref":null}`
	legacyInsertFrame = `{"topic":"realtime:public:help_requests","event":"INSERT","payload":{"type":"INSERT","table":"help_requests","record":{"id":7,"message":"flood"},"commit_timestamp":"2026-03-01T08:00:00Z"},"ref":null}`
)

func TestRealtime_SubscribeDeliversMatchingEvents(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL)
	ctx := context.Background()

	events := make(chan models.ChangeEvent, 4)
	sub, err := b.Subscribe(ctx, "help_requests", models.EventFilter{Event: "insert"}, func(ev models.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)
	assert.Equal(t, "realtime:public:help_requests", sub.Topic)
	assert.Equal(t, "help_requests", sub.Table)
	assert.NotEmpty(t, sub.ID)

	conn := f.nextConn(t)
	join := f.nextMessage(t)
	assert.Equal(t, eventJoin, join.Event)
	assert.Equal(t, sub.Topic, join.Topic)
	assert.Equal(t, join.Ref, join.JoinRef)

	send(t, conn, legacyUpdateFrame)
	send(t, conn, legacyInsertFrame)

	ev := receive(t, events)
	assert.Equal(t, "INSERT", ev.Type)
	assert.Equal(t, "help_requests", ev.Table)
	assert.Equal(t, "7", ev.Record.ID())
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), ev.At.UTC())

	select {
	case extra := <-events:
		t.Fatalf("unexpected %s event delivered", extra.Type)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, b.Unsubscribe(ctx, sub))
	leave := f.nextMessage(t)
	assert.Equal(t, eventLeave, leave.Event)
	assert.Equal(t, sub.Topic, leave.Topic)
	assert.Equal(t, join.Ref, leave.JoinRef)
}

func TestRealtime_PostgresChangesFrameWithFilter(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL)

	events := make(chan models.ChangeEvent, 4)
	sub, err := b.Subscribe(context.Background(), "help_requests", models.EventFilter{Filter: "region=eq.NCR"}, func(ev models.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)
	assert.Equal(t, "realtime:public:help_requests:region=eq.NCR", sub.Topic)

	conn := f.nextConn(t)
	_ = f.nextMessage(t)

	send(t, conn, `{"topic":"realtime:public:help_requests:region=eq.NCR","event":"postgres_changes","payload":{"data":{"type":"UPDATE","table":"help_requests","record":{"id":3,"status":"rescued"},"old_record":{"id":3,"status":"pending"},"commit_timestamp":"2026-03-01T08:00:00.123456+00:00"}},"ref":null}`)

	ev := receive(t, events)
	assert.Equal(t, "UPDATE", ev.Type)
	assert.Equal(t, "rescued", ev.Record["status"])
	assert.Equal(t, "pending", ev.OldRecord["status"])
	assert.False(t, ev.At.IsZero())
}

func TestRealtime_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL)
	ctx := context.Background()

	_, err := b.Subscribe(ctx, "help_requests", models.EventFilter{}, func(models.ChangeEvent) {
		panic("listener bug")
	})
	require.NoError(t, err)

	events := make(chan models.ChangeEvent, 4)
	_, err = b.Subscribe(ctx, "help_requests", models.EventFilter{Event: "*"}, func(ev models.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)

	conn := f.nextConn(t)
	_ = f.nextMessage(t)

	send(t, conn, legacyInsertFrame)
	send(t, conn, legacyUpdateFrame)

	assert.Equal(t, "INSERT", receive(t, events).Type)
	assert.Equal(t, "UPDATE", receive(t, events).Type)
}

func TestRealtime_Heartbeat(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL, WithHeartbeat(20*time.Millisecond))

	_, err := b.Subscribe(context.Background(), "road_reports", models.EventFilter{}, func(models.ChangeEvent) {})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-f.msgs:
			if m.Event == eventHeartbeat {
				assert.Equal(t, phoenixTopic, m.Topic)
				return
			}
		case <-deadline:
			t.Fatal("no heartbeat sent")
		}
	}
}

func TestRealtime_ReconnectsAfterDrop(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL, WithRedialBackoff(10*time.Millisecond, 50*time.Millisecond))

	events := make(chan models.ChangeEvent, 4)
	sub, err := b.Subscribe(context.Background(), "help_requests", models.EventFilter{}, func(ev models.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)

	first := f.nextConn(t)
	_ = f.nextMessage(t)
	require.NoError(t, first.Close())

	second := f.nextConn(t)
	rejoin := f.nextMessage(t)
	assert.Equal(t, eventJoin, rejoin.Event)
	assert.Equal(t, sub.Topic, rejoin.Topic)

	send(t, second, legacyInsertFrame)
	assert.Equal(t, "INSERT", receive(t, events).Type)
}

func TestRealtime_CloseStopsReconnecting(t *testing.T) {
	f := newFakeRealtime(t)
	b := newTestBackend(t, f.srv.URL, WithRedialBackoff(20*time.Millisecond, 20*time.Millisecond))

	_, err := b.Subscribe(context.Background(), "help_requests", models.EventFilter{}, func(models.ChangeEvent) {})
	require.NoError(t, err)

	first := f.nextConn(t)
	_ = f.nextMessage(t)
	require.NoError(t, b.Close())
	_ = first.Close()

	select {
	case <-f.conns:
		t.Fatal("closed client reconnected")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRealtime_UnsupportedEvent(t *testing.T) {
	b := newTestBackend(t, "http://127.0.0.1:1")

	_, err := b.Subscribe(context.Background(), "help_requests", models.EventFilter{Event: "TRUNCATE"}, func(models.ChangeEvent) {})
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestRealtime_DialFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := newTestBackend(t, url)
	_, err := b.Subscribe(context.Background(), "help_requests", models.EventFilter{}, func(models.ChangeEvent) {})
	assert.ErrorIs(t, err, ErrTransient)
}

func TestRealtime_UnsubscribeUnknownIsNoop(t *testing.T) {
	b := newTestBackend(t, "http://127.0.0.1:1")
	assert.NoError(t, b.Unsubscribe(context.Background(), Subscription{ID: "missing"}))
}
