package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore keeps the conversation log in process memory.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	msgs   map[int64]Message
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{msgs: make(map[int64]Message)}
}

func (s *MemStore) Append(_ context.Context, msgs ...Message) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		s.nextID++
		m.ID = s.nextID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		s.msgs[m.ID] = m
		out[i] = m
	}
	return out, nil
}

func (s *MemStore) Get(_ context.Context, id int64) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemStore) Update(_ context.Context, id int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return ErrNotFound
	}
	m.Content = content
	s.msgs[id] = m
	return nil
}

func (s *MemStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return ErrNotFound
	}
	delete(s.msgs, id)
	return nil
}

func (s *MemStore) All(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Close() error { return nil }
