package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRealtime is a minimal Phoenix endpoint: it acknowledges joins and answers each join
// with the configured postgres change.
type fakeRealtime struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu        sync.Mutex
	queries   []string
	frames    chan phxMessage
	change    map[string]any
	dropFirst bool
	conns     int
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	return &fakeRealtime{t: t, frames: make(chan phxMessage, 64)}
}

func (f *fakeRealtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.queries = append(f.queries, r.URL.RawQuery)
	f.conns++
	drop := f.dropFirst && f.conns == 1
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg phxMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		select {
		case f.frames <- msg:
		default:
		}
		if msg.Event != phxJoin {
			continue
		}
		if drop {
			return
		}
		reply, _ := json.Marshal(map[string]any{"status": "ok", "response": map[string]any{}})
		_ = conn.WriteJSON(phxMessage{Topic: msg.Topic, Event: phxReply, Payload: reply, Ref: msg.Ref})

		f.mu.Lock()
		row := f.change
		f.mu.Unlock()
		if row == nil {
			continue
		}
		payload, _ := json.Marshal(map[string]any{"data": map[string]any{
			"type":             "INSERT",
			"table":            "messages",
			"schema":           "public",
			"record":           row,
			"commit_timestamp": "2025-03-14T09:00:01Z",
		}})
		_ = conn.WriteJSON(phxMessage{Topic: msg.Topic, Event: pgChanges, Payload: payload})
	}
}

func (f *fakeRealtime) waitFrame(t *testing.T, event string) phxMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-f.frames:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s frame received", event)
			return phxMessage{}
		}
	}
}

func startSocket(t *testing.T, srv *httptest.Server, heartbeat time.Duration) *SocketTransport {
	t.Helper()
	tr := NewSocketTransport(SocketConfig{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/v1/websocket",
		APIKey:      "anon-key",
		AccessToken: "user-token",
		Heartbeat:   heartbeat,
		MinBackoff:  10 * time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
	})
	tr.Start(context.Background())
	t.Cleanup(tr.Close)
	return tr
}

func TestSocketTransport_JoinAndDeliver(t *testing.T) {
	fake := newFakeRealtime(t)
	fake.change = map[string]any{
		"id": "m1", "sender_id": "bob", "receiver_id": "alice", "content": "hello",
		"created_at": "2025-03-14T09:00:00Z",
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := startSocket(t, srv, time.Hour)

	got := make(chan Change, 4)
	stop, err := tr.Listen(context.Background(), "sync:conversation:alice:bob",
		Filter{Table: TableMessages, Op: OpInsert, Column: "receiver_id", Value: "alice"},
		func(c Change) { got <- c })
	require.NoError(t, err)
	defer stop()

	join := fake.waitFrame(t, phxJoin)
	assert.Equal(t, "realtime:sync:conversation:alice:bob", join.Topic)

	var payload joinPayload
	require.NoError(t, json.Unmarshal(join.Payload, &payload))
	require.Len(t, payload.Config.PostgresChanges, 1)
	assert.Equal(t, pgChangeConfig{Event: "INSERT", Schema: "public", Table: "messages", Filter: "receiver_id=eq.alice"},
		payload.Config.PostgresChanges[0])
	assert.Equal(t, "user-token", payload.AccessToken)

	select {
	case c := <-got:
		assert.Equal(t, "m1", c.Record.ID)
		assert.Equal(t, "hello", c.Record.Content)
		assert.Equal(t, OpInsert, c.Op)
		assert.False(t, c.CommitTimestamp.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("change not delivered")
	}

	fake.mu.Lock()
	query := fake.queries[0]
	fake.mu.Unlock()
	assert.Contains(t, query, "apikey=anon-key")
	assert.Contains(t, query, "vsn=1.0.0")
}

func TestSocketTransport_FilterMismatchNotDelivered(t *testing.T) {
	fake := newFakeRealtime(t)
	fake.change = map[string]any{
		"id": "m1", "sender_id": "alice", "receiver_id": "bob", "content": "hello",
		"created_at": "2025-03-14T09:00:00Z",
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := startSocket(t, srv, time.Hour)

	got := make(chan Change, 4)
	stop, err := tr.Listen(context.Background(), "sync:conversation:alice:bob",
		Filter{Table: TableMessages, Op: OpInsert, Column: "receiver_id", Value: "alice"},
		func(c Change) { got <- c })
	require.NoError(t, err)
	defer stop()

	fake.waitFrame(t, phxJoin)
	select {
	case c := <-got:
		t.Fatalf("unexpected delivery %s", c.Record.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSocketTransport_HeartbeatAndLeave(t *testing.T) {
	fake := newFakeRealtime(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := startSocket(t, srv, 20*time.Millisecond)

	stop, err := tr.Listen(context.Background(), "sync:feed", Filter{Table: TableFeedPosts, Op: OpInsert}, func(Change) {})
	require.NoError(t, err)

	hb := fake.waitFrame(t, phxHeartbeat)
	assert.Equal(t, phoenixTopic, hb.Topic)

	fake.waitFrame(t, phxJoin)
	stop()
	leave := fake.waitFrame(t, phxLeave)
	assert.Equal(t, "realtime:sync:feed", leave.Topic)
}

func TestSocketTransport_ReconnectRejoins(t *testing.T) {
	fake := newFakeRealtime(t)
	fake.dropFirst = true
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := startSocket(t, srv, time.Hour)

	states := make(chan State, 16)
	stopWatch := tr.WatchState(func(s State) { states <- s })
	defer stopWatch()

	_, err := tr.Listen(context.Background(), "sync:feed", Filter{Table: TableFeedPosts, Op: OpInsert}, func(Change) {})
	require.NoError(t, err)

	first := fake.waitFrame(t, phxJoin)
	second := fake.waitFrame(t, phxJoin)
	assert.Equal(t, first.Topic, second.Topic)

	sawDisconnect := false
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-states:
			if s == StateDisconnected {
				sawDisconnect = true
			}
			if sawDisconnect && s == StateConnected {
				return
			}
		case <-deadline:
			t.Fatalf("no disconnect/reconnect cycle observed (disconnected=%v)", sawDisconnect)
		}
	}
}

func TestSocketTransport_ClosedRefusesListen(t *testing.T) {
	tr := NewSocketTransport(SocketConfig{URL: "ws://127.0.0.1:1/never"})
	tr.Close()

	assert.Equal(t, StateClosed, tr.State())
	_, err := tr.Listen(context.Background(), "sync:feed", Filter{Table: TableFeedPosts}, func(Change) {})
	assert.ErrorIs(t, err, ErrTransportDisconnected)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 30*time.Second))
}

func TestSocketURL(t *testing.T) {
	got, err := SocketURL("https://abc.supabase.co")
	require.NoError(t, err)
	assert.Equal(t, "wss://abc.supabase.co/realtime/v1/websocket", got)

	got, err = SocketURL("http://localhost:54321/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:54321/realtime/v1/websocket", got)

	_, err = SocketURL("ftp://abc.supabase.co")
	assert.Error(t, err)
}
