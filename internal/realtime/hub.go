package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
)

// Hub owns the subscriptions of one client session, at most one per scope.
type Hub struct {
	transport Transport
	logger    *slog.Logger

	mu        sync.Mutex
	active    map[models.Scope]*Subscription
	state     State
	closed    bool
	stopWatch func()
}

func NewHub(transport Transport, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		transport: transport,
		logger:    logger,
		active:    make(map[models.Scope]*Subscription),
		state:     StateConnecting,
	}
	h.stopWatch = transport.WatchState(h.onState)
	return h
}

// Subscribe opens the change feed of scope. Only changes matching filter whose record
// belongs to scope are delivered. A second subscription for an active scope is refused.
func (h *Hub) Subscribe(ctx context.Context, scope models.Scope, filter Filter) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if _, ok := h.active[scope]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrScopeActive, scope)
	}
	sub := newSubscription(h, scope, filter, h.state)
	h.active[scope] = sub
	h.mu.Unlock()

	stop, err := h.transport.Listen(ctx, topicFor(scope), filter, sub.deliver)
	if err != nil {
		h.mu.Lock()
		delete(h.active, scope)
		h.mu.Unlock()
		sub.shutdown()
		return nil, fmt.Errorf("realtime: listen %s: %w", scope, err)
	}
	sub.setStop(stop)

	metrics.ActiveSubscriptions.Inc()
	h.logger.Debug("subscription opened", "scope", scope.String(), "table", string(filter.Table), "filter", filter.Expr())
	return sub, nil
}

// Unsubscribe closes sub. It is the same as sub.Close.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Close()
	}
}

// Active reports whether scope has an open subscription.
func (h *Hub) Active(scope models.Scope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.active[scope]
	return ok
}

// State returns the last transport state seen by the hub.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Close closes every subscription and stops watching the transport.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.active))
	for _, s := range h.active {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	h.stopWatch()
}

func (h *Hub) release(sub *Subscription) {
	h.mu.Lock()
	if h.active[sub.scope] == sub {
		delete(h.active, sub.scope)
	}
	h.mu.Unlock()
	metrics.ActiveSubscriptions.Dec()
}

func (h *Hub) onState(s State) {
	h.mu.Lock()
	prev := h.state
	h.state = s
	subs := make([]*Subscription, 0, len(h.active))
	for _, sub := range h.active {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if s == StateConnected {
		metrics.TransportState.Set(1)
	} else {
		metrics.TransportState.Set(0)
	}
	if prev != s {
		h.logger.Info("push transport state changed", "from", prev.String(), "to", s.String(), "subscriptions", len(subs))
	}
	for _, sub := range subs {
		sub.setState(s)
	}
}

func topicFor(scope models.Scope) string {
	return "sync:" + scope.String()
}

// Subscription is the lazy, unbounded, non-restartable change stream of one scope.
type Subscription struct {
	hub    *Hub
	scope  models.Scope
	filter Filter

	mu     sync.Mutex
	queue  []Change
	closed bool
	state  State
	gap    bool
	stop   func()

	signal chan struct{}
	done   chan struct{}
	exited chan struct{}
	events chan Change
}

func newSubscription(h *Hub, scope models.Scope, filter Filter, state State) *Subscription {
	s := &Subscription{
		hub:    h,
		scope:  scope,
		filter: filter,
		state:  state,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		events: make(chan Change),
	}
	go s.pump()
	return s
}

func (s *Subscription) Scope() models.Scope { return s.scope }

func (s *Subscription) Filter() Filter { return s.filter }

// Events yields delivered changes. The channel is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Change { return s.events }

// State returns the connectivity of the subscription and whether events may have been
// missed since the last AckGap.
func (s *Subscription) State() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.gap
}

// AckGap clears the missed-events flag, typically after a full re-read.
func (s *Subscription) AckGap() {
	s.mu.Lock()
	s.gap = false
	s.mu.Unlock()
}

// Close stops delivery. Once Close returns no further change is delivered and Events is closed.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.exited
		return
	}
	s.closed = true
	s.state = StateClosed
	s.queue = nil
	stop := s.stop
	s.mu.Unlock()

	close(s.done)
	<-s.exited
	if stop != nil {
		stop()
	}
	s.hub.release(s)
	s.hub.logger.Debug("subscription closed", "scope", s.scope.String())
}

// shutdown stops the pump of a subscription that never became active.
func (s *Subscription) shutdown() {
	s.mu.Lock()
	s.closed = true
	s.state = StateClosed
	s.mu.Unlock()
	close(s.done)
	<-s.exited
}

func (s *Subscription) setStop(stop func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if state == StateConnected && s.state == StateDisconnected {
		s.gap = true
	}
	s.state = state
}

func (s *Subscription) deliver(c Change) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		metrics.ChangesDropped.WithLabelValues("closed").Inc()
		return
	case s.state == StateDisconnected:
		s.mu.Unlock()
		metrics.ChangesDropped.WithLabelValues("disconnected").Inc()
		return
	case !s.filter.Matches(c):
		s.mu.Unlock()
		metrics.ChangesDropped.WithLabelValues("filter").Inc()
		return
	case c.Record.Scope != s.scope:
		s.mu.Unlock()
		metrics.ChangesDropped.WithLabelValues("scope").Inc()
		return
	}
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.exited)
	defer close(s.events)
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		c := s.queue[0]
		s.queue[0] = Change{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- c:
			metrics.ChangesDelivered.WithLabelValues(string(c.Table)).Inc()
		case <-s.done:
			return
		}
	}
}
