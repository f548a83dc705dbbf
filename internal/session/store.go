package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds one Controller per session id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	factory  func() *Controller
	ttl      time.Duration
}

// NewStore returns a Store that builds controllers with factory and forgets
// sessions idle for longer than ttl.
func NewStore(factory func() *Controller, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Controller),
		factory:  factory,
		ttl:      ttl,
	}
}

// Get returns the controller for id and marks it as used.
func (s *Store) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	c, ok := s.sessions[id]
	s.mu.Unlock()

	if ok {
		c.touch()
	}
	return c, ok
}

// Create starts a new session.
func (s *Store) Create(ctx context.Context) (string, *Controller) {
	id := uuid.New().String()
	c := s.factory()

	s.mu.Lock()
	s.sessions[id] = c
	s.mu.Unlock()

	activeSessions.Add(ctx, 1)
	return id, c
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes and removes sessions idle since before now - ttl and reports
// how many were removed.
func (s *Store) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	var expired []*Controller
	for id, c := range s.sessions {
		if c.idleSince().Before(cutoff) {
			expired = append(expired, c)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	if n := len(expired); n > 0 {
		activeSessions.Add(ctx, -int64(n))
	}
	return len(expired)
}

// Close closes every session and empties the store.
func (s *Store) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
	if n := len(sessions); n > 0 {
		activeSessions.Add(context.Background(), -int64(n))
	}
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}
