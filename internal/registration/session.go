package registration

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dstlead/dstlead/internal/services"
)

// Session is one in-progress registration. Actions on a session are
// serialized; nothing in it is written to storage before completion.
type Session struct {
	ID string

	mu    sync.Mutex
	stage Stage

	createdAt time.Time
	seen      atomic.Int64
}

func NewSession(id string, now time.Time) *Session {
	s := &Session{ID: id, stage: CredentialsEntry{}, createdAt: now}
	s.seen.Store(now.UnixNano())
	return s
}

// Stage returns the current stage. It waits for any in-flight action.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.seen.Load()).UTC() }

func (s *Session) touch(now time.Time) { s.seen.Store(now.UnixNano()) }

// set must be called with s.mu held.
func (s *Session) set(st Stage, now time.Time) {
	s.stage = st
	s.touch(now)
}

// Sessions keeps live registrations in memory and expires idle ones.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	idGen    func() string
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{
		sessions: map[string]*Session{},
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    uuid.NewString,
	}
}

func (m *Sessions) Start() *Session {
	s := NewSession(m.idGen(), m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	slog.Debug("registration started", "session", s.ID)
	return s
}

// Get returns a live session and marks it active.
func (m *Sessions) Get(id string) (*Session, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, services.NewNotFoundError("registration session not found")
	}
	if m.expired(s, now) {
		delete(m.sessions, id)
		return nil, services.NewNotFoundError("registration session expired")
	}
	s.touch(now)
	return s, nil
}

// Abandon drops a session; it reports whether one existed.
func (m *Sessions) Abandon(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes idle sessions and returns how many were dropped.
func (m *Sessions) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (m *Sessions) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("expired registration sessions", "count", n)
			}
		}
	}
}

func (m *Sessions) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastSeen()) > m.ttl
}
