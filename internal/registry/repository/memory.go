package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"specsync/internal/registry/domain"
)

// MemoryStore is an in-memory Store used in tests and when no DATABASE_URL
// is configured. Snapshots go through JSON so saved state is as detached
// from the registry's live records as a database row would be.
type MemoryStore struct {
	mu       sync.Mutex
	machines map[string][]byte
	saves    int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{machines: make(map[string][]byte)}
}

// LoadAll returns every saved machine record.
func (s *MemoryStore) LoadAll(ctx context.Context) ([]*domain.MachineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.MachineRecord, 0, len(s.machines))
	for id, raw := range s.machines {
		m := &domain.MachineRecord{}
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, fmt.Errorf("decode machine %s: %w", id, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SaveMachine stores the machine's snapshot.
func (s *MemoryStore) SaveMachine(ctx context.Context, m *domain.MachineRecord) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[m.ID] = raw
	s.saves++
	return nil
}

// Saves returns how many SaveMachine calls happened. Test hook for the
// write-through guarantee.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
