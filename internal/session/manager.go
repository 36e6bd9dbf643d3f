package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sjnosa/connect/internal/notify"
	"github.com/sjnosa/connect/internal/realtime"
)

// Manager holds the process-wide session. At most one user is signed in at a time;
// starting a session for another user stops the current one first.
type Manager struct {
	backend   Backend
	transport realtime.Transport
	alerter   notify.PlatformAlerter
	opts      Options

	mu      sync.Mutex
	current *Session
}

func NewManager(backend Backend, transport realtime.Transport, alerter notify.PlatformAlerter, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{backend: backend, transport: transport, alerter: alerter, opts: opts}
}

// Start signs userID in. Starting the user already signed in returns the running session.
func (m *Manager) Start(ctx context.Context, userID, email string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.userID == userID {
			return m.current, nil
		}
		m.current.stop()
		m.current = nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSession(userID, email, m.backend, m.transport, m.alerter, m.opts)
	s.start()
	m.current = s
	return s, nil
}

// Stop signs the current user out. It is a no-op without a session.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current.stop()
	m.current = nil
}

// Current returns the running session or ErrNoSession.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// For returns the running session if it belongs to userID.
func (m *Manager) For(userID string) (*Session, error) {
	s, err := m.Current()
	if err != nil {
		return nil, err
	}
	if s.userID != userID {
		return nil, ErrNoSession
	}
	return s, nil
}
