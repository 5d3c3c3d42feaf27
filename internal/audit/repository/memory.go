package repository

import (
	"context"
	"sync"

	"specsync/internal/audit/domain"
)

// MemoryRepository is an in-memory Repository for tests and DB-less runs.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.Entry
}

// NewMemoryRepository returns an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append stores the entry.
func (r *MemoryRepository) Append(ctx context.Context, e *domain.Entry) error {
	cp := *e
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &cp)
	return nil
}

// ListByMachine returns entries for the machine, newest first.
func (r *MemoryRepository) ListByMachine(ctx context.Context, machineID string, limit, offset int32) ([]*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].MachineID == machineID {
			cp := *r.entries[i]
			matched = append(matched, &cp)
		}
	}
	if offset >= int32(len(matched)) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < int32(len(matched)) {
		matched = matched[:limit]
	}
	return matched, nil
}
