package tokens

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store and UserStore for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
	users  map[int64]struct{}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]Token),
		users:  make(map[int64]struct{}),
	}
}

func (m *MemoryStore) Put(_ context.Context, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.Key] = tok
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, key string) (Token, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[key]
	return tok, ok, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens), nil
}

func (m *MemoryStore) AddUser(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; ok {
		return false, nil
	}
	m.users[userID] = struct{}{}
	return true, nil
}

func (m *MemoryStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}
