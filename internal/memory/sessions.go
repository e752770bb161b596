package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/logging"
)

// Sessions tracks one Conversation per session id and evicts idle ones.
type Sessions struct {
	mu         sync.Mutex
	windowSize int
	ttl        time.Duration
	store      Store
	logger     *logging.Logger
	sessions   map[string]*Conversation
	now        func() time.Time
}

// NewSessions returns a registry whose conversations share store.
func NewSessions(windowSize int, ttl time.Duration, store Store, logger *logging.Logger) *Sessions {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sessions{
		windowSize: windowSize,
		ttl:        ttl,
		store:      store,
		logger:     logger,
		sessions:   make(map[string]*Conversation),
		now:        time.Now,
	}
}

// Get returns the conversation for id, creating it on first use.
func (s *Sessions) Get(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[id]
	if !ok {
		c = NewConversation(id, s.windowSize, s.store)
		s.sessions[id] = c
	}
	c.lastUsed = s.now()
	return c
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, c := range s.sessions {
		if c.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug(ctx, "evicted idle sessions", zap.Int("count", n), zap.Int("remaining", s.Len()))
			}
		}
	}
}
