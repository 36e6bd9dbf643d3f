package realtime

import (
	"context"
	"errors"
)

// State is the connectivity of a transport or subscription.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrTransportDisconnected = errors.New("realtime: transport disconnected")
	ErrScopeActive           = errors.New("realtime: scope already has an active subscription")
	ErrHubClosed             = errors.New("realtime: hub closed")
)

// Transport carries pushed changes from the backend. Reconnection is the transport's job;
// it reports connectivity through WatchState and keeps listeners registered across reconnects.
type Transport interface {
	// Listen registers deliver for changes matching filter on topic until stop is called.
	// deliver may be called from any goroutine and must not block.
	Listen(ctx context.Context, topic string, filter Filter, deliver func(Change)) (stop func(), err error)
	// WatchState calls fn with the current state and on every change until stop is called.
	WatchState(fn func(State)) (stop func())
}

// Publisher accepts changes produced by a backend that writes directly to storage.
type Publisher interface {
	Publish(c Change)
}
