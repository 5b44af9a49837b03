package session

import (
	"log/slog"
	"sync"
)

// Manager tracks the lifecycle of active capture sessions. Each session owns
// its own parser and continuity state; the manager only provides
// create/remove/list bookkeeping for the capture and serving layers.
type Manager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:      log.With("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for key, delivering output to sink.
// Returns nil and false if a session with this key already exists.
func (m *Manager) Create(key string, sink Sink) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; ok {
		m.log.Warn("session already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	s := New(key, sink, m.log)
	m.sessions[key] = s
	m.log.Info("session created", "key", key)
	return s, true
}

// Remove drops a session from the manager. The caller is responsible for
// closing the session once its byte stream has ended.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	_, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if ok {
		m.log.Info("session removed", "key", key)
	}
}

// Get returns the session for key, or false if none exists.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// List returns all active sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
