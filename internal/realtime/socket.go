package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	phxJoin      = "phx_join"
	phxLeave     = "phx_leave"
	phxReply     = "phx_reply"
	phxError     = "phx_error"
	phxClose     = "phx_close"
	phxHeartbeat = "heartbeat"
	pgChanges    = "postgres_changes"

	phoenixTopic = "phoenix"
	topicPrefix  = "realtime:"
)

// SocketConfig configures a SocketTransport.
type SocketConfig struct {
	// URL is the realtime websocket endpoint, e.g. wss://<ref>.supabase.co/realtime/v1/websocket.
	URL         string
	APIKey      string
	AccessToken string

	Heartbeat    time.Duration
	WriteTimeout time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

func (c *SocketConfig) withDefaults() {
	if c.Heartbeat <= 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 30 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// phxMessage is a Phoenix channel frame (serializer vsn 1.0.0).
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type pgChangeConfig struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []pgChangeConfig `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type changePayload struct {
	Data struct {
		Type            string         `json:"type"`
		Table           string         `json:"table"`
		Record          map[string]any `json:"record"`
		OldRecord       map[string]any `json:"old_record"`
		CommitTimestamp string         `json:"commit_timestamp"`
	} `json:"data"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type channel struct {
	topic   string
	filter  Filter
	deliver func(Change)
	joinRef string
}

// SocketTransport is a Transport over the Supabase Realtime websocket. It joins one
// postgres_changes channel per Listen call, keeps the connection alive with heartbeats and
// reconnects with exponential backoff, rejoining every registered channel.
type SocketTransport struct {
	cfg    SocketConfig
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]*channel
	watchers map[int]func(State)
	nextID   int
	ref      uint64
	state    State

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSocketTransport(cfg SocketConfig) *SocketTransport {
	cfg.withDefaults()
	return &SocketTransport{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "realtime-socket"),
		channels: make(map[string]*channel),
		watchers: make(map[int]func(State)),
		state:    StateConnecting,
		done:     make(chan struct{}),
	}
}

// Start runs the connection loop until ctx is cancelled or Close is called.
func (t *SocketTransport) Start(ctx context.Context) {
	t.mu.Lock()
	if t.ctx != nil {
		t.mu.Unlock()
		return
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()
	go t.run()
}

// Close stops the connection loop and waits for it to exit.
func (t *SocketTransport) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		t.setState(StateClosed)
		return
	}
	cancel()
	<-t.done
}

func (t *SocketTransport) Listen(_ context.Context, topic string, filter Filter, deliver func(Change)) (func(), error) {
	ch := &channel{topic: topicPrefix + topic, filter: filter, deliver: deliver}

	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil, ErrTransportDisconnected
	}
	if _, ok := t.channels[ch.topic]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: topic %s", ErrScopeActive, ch.topic)
	}
	t.channels[ch.topic] = ch
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		if err := t.join(conn, ch); err != nil {
			t.logger.Warn("join failed, will retry on reconnect", "topic", ch.topic, "error", err)
		}
	}

	return func() {
		t.mu.Lock()
		if t.channels[ch.topic] != ch {
			t.mu.Unlock()
			return
		}
		delete(t.channels, ch.topic)
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			_ = t.send(conn, phxMessage{Topic: ch.topic, Event: phxLeave, Payload: json.RawMessage("{}"), Ref: t.nextRef()})
		}
	}, nil
}

func (t *SocketTransport) WatchState(fn func(State)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = fn
	state := t.state
	t.mu.Unlock()

	fn(state)
	return func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}

// State returns the current connection state.
func (t *SocketTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *SocketTransport) run() {
	defer close(t.done)
	defer t.setState(StateClosed)

	backoff := t.cfg.MinBackoff
	for {
		conn, err := t.dial()
		if err != nil {
			t.logger.Warn("realtime connect failed", "error", err, "retry_in", backoff.String())
			t.setState(StateDisconnected)
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, t.cfg.MaxBackoff)
			continue
		}
		backoff = t.cfg.MinBackoff

		t.serve(conn)

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func nextBackoff(cur, ceiling time.Duration) time.Duration {
	next := cur * 2
	if next > ceiling || next <= 0 {
		return ceiling
	}
	return next
}

// SocketURL derives the realtime websocket endpoint from a project URL such as
// https://<ref>.supabase.co.
func SocketURL(projectURL string) (string, error) {
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse project url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("realtime: unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	return u.String(), nil
}

func (t *SocketTransport) endpoint() (string, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	if t.cfg.APIKey != "" {
		q.Set("apikey", t.cfg.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *SocketTransport) dial() (*websocket.Conn, error) {
	endpoint, err := t.endpoint()
	if err != nil {
		return nil, err
	}
	conn, _, err := t.cfg.Dialer.DialContext(t.ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve owns conn until it fails or the transport is closed.
func (t *SocketTransport) serve(conn *websocket.Conn) {
	defer conn.Close()

	handleCtx, handleCancel := context.WithCancel(t.ctx)
	defer handleCancel()

	t.mu.Lock()
	t.conn = conn
	channels := make([]*channel, 0, len(t.channels))
	for _, ch := range t.channels {
		channels = append(channels, ch)
	}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
	}()

	t.setState(StateConnected)
	t.logger.Info("realtime connected", "channels", len(channels))
	for _, ch := range channels {
		if err := t.join(conn, ch); err != nil {
			t.logger.Warn("rejoin failed", "topic", ch.topic, "error", err)
			t.setState(StateDisconnected)
			return
		}
	}

	go func() {
		defer handleCancel()
		ticker := time.NewTicker(t.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-handleCtx.Done():
				return
			case <-ticker.C:
				hb := phxMessage{Topic: phoenixTopic, Event: phxHeartbeat, Payload: json.RawMessage("{}"), Ref: t.nextRef()}
				if err := t.send(conn, hb); err != nil {
					t.logger.Warn("heartbeat failed", "error", err)
					return
				}
			}
		}
	}()

	go func() {
		<-handleCtx.Done()
		// unblocks ReadMessage
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if handleCtx.Err() == nil {
				t.logger.Warn("realtime read failed", "error", err)
			}
			break
		}
		t.handle(data)
	}
	handleCancel()

	if t.ctx.Err() == nil {
		t.setState(StateDisconnected)
	}
}

func (t *SocketTransport) handle(data []byte) {
	var msg phxMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.logger.Warn("malformed realtime frame", "error", err)
		return
	}

	switch msg.Event {
	case pgChanges:
		t.dispatch(msg)
	case phxReply:
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err == nil && reply.Status != "ok" {
			t.logger.Warn("realtime request refused", "topic", msg.Topic, "status", reply.Status, "response", string(reply.Response))
		}
	case phxError, phxClose:
		t.logger.Warn("realtime channel closed by server", "topic", msg.Topic, "event", msg.Event)
	}
}

func (t *SocketTransport) dispatch(msg phxMessage) {
	t.mu.Lock()
	ch := t.channels[msg.Topic]
	t.mu.Unlock()
	if ch == nil {
		return
	}

	var p changePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.logger.Warn("malformed postgres change", "topic", msg.Topic, "error", err)
		return
	}
	row := p.Data.Record
	if Op(p.Data.Type) == OpDelete {
		row = p.Data.OldRecord
	}
	c, err := NewChange(Table(p.Data.Table), Op(p.Data.Type), row)
	if err != nil {
		t.logger.Warn("undecodable postgres change", "topic", msg.Topic, "error", err)
		return
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Data.CommitTimestamp); err == nil {
		c.CommitTimestamp = ts
	}
	if !ch.filter.Matches(c) {
		return
	}
	ch.deliver(c)
}

func (t *SocketTransport) join(conn *websocket.Conn, ch *channel) error {
	var payload joinPayload
	op := string(ch.filter.Op)
	if op == "" {
		op = string(OpAll)
	}
	payload.Config.PostgresChanges = []pgChangeConfig{{
		Event:  op,
		Schema: "public",
		Table:  string(ch.filter.Table),
		Filter: ch.filter.Expr(),
	}}
	payload.AccessToken = t.cfg.AccessToken

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ref := t.nextRef()
	t.mu.Lock()
	ch.joinRef = ref
	t.mu.Unlock()
	return t.send(conn, phxMessage{Topic: ch.topic, Event: phxJoin, Payload: raw, Ref: ref, JoinRef: ref})
}

func (t *SocketTransport) send(conn *websocket.Conn, msg phxMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *SocketTransport) nextRef() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ref++
	return strconv.FormatUint(t.ref, 10)
}

func (t *SocketTransport) setState(s State) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	watchers := make([]func(State), 0, len(t.watchers))
	for _, fn := range t.watchers {
		watchers = append(watchers, fn)
	}
	t.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}
