package realtime

import (
	"context"
	"sync"
)

type localListener struct {
	filter  Filter
	deliver func(Change)
}

// LocalBroker is an in-process Transport. Backends that write straight to storage publish
// their changes here; delivery is synchronous to every matching listener.
type LocalBroker struct {
	mu        sync.Mutex
	listeners map[int]*localListener
	watchers  map[int]func(State)
	next      int
	state     State
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		listeners: make(map[int]*localListener),
		watchers:  make(map[int]func(State)),
		state:     StateConnected,
	}
}

func (b *LocalBroker) Listen(_ context.Context, _ string, filter Filter, deliver func(Change)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = &localListener{filter: filter, deliver: deliver}
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}, nil
}

func (b *LocalBroker) WatchState(fn func(State)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.watchers[id] = fn
	state := b.state
	b.mu.Unlock()

	fn(state)
	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

// Publish fans c out to matching listeners. Nothing is delivered while disconnected.
func (b *LocalBroker) Publish(c Change) {
	b.mu.Lock()
	if b.state != StateConnected {
		b.mu.Unlock()
		return
	}
	var targets []func(Change)
	for _, l := range b.listeners {
		if l.filter.Matches(c) {
			targets = append(targets, l.deliver)
		}
	}
	b.mu.Unlock()

	for _, deliver := range targets {
		deliver(c)
	}
}

// Disconnect simulates a lost push connection.
func (b *LocalBroker) Disconnect() {
	b.setState(StateDisconnected)
}

// Reconnect restores a lost push connection. Changes published in between are gone.
func (b *LocalBroker) Reconnect() {
	b.setState(StateConnected)
}

func (b *LocalBroker) setState(s State) {
	b.mu.Lock()
	if b.state == s {
		b.mu.Unlock()
		return
	}
	b.state = s
	watchers := make([]func(State), 0, len(b.watchers))
	for _, fn := range b.watchers {
		watchers = append(watchers, fn)
	}
	b.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}

func (b *LocalBroker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
