package repository

import (
	"context"
	"sync"
)

// MemoryTokenStore is an in-memory TokenStore for tests and DB-less runs.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryTokenStore returns an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token)}
}

// Put stores the token by hash.
func (s *MemoryTokenStore) Put(ctx context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.Hash]; !ok {
		s.tokens[t.Hash] = *t
	}
	return nil
}

// Get returns the token for hash, or nil if absent.
func (s *MemoryTokenStore) Get(ctx context.Context, hash string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}
