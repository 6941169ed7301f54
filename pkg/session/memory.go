package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. It is meant for tests and
// single-instance development servers.
type MemoryStore struct {
	byID   map[string]Session
	tokens map[string]string
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Session),
		tokens: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	return m.Update(ctx, s)
}

func (m *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.byID[id]
	if !ok || s.Token != token {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	out := s
	out.Values = cloneValues(s.Values)
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.byID[s.ID]; ok && prev.Token != s.Token {
		delete(m.tokens, prev.Token)
	}
	cp := *s
	cp.Values = cloneValues(s.Values)
	m.byID[s.ID] = cp
	m.tokens[s.Token] = s.ID
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[id]; ok {
		delete(m.tokens, s.Token)
		delete(m.byID, id)
	}
	return nil
}

func (m *MemoryStore) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.byID {
		if s.UserID == userID {
			delete(m.tokens, s.Token)
			delete(m.byID, id)
		}
	}
	return nil
}

func cloneValues(v map[string]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
