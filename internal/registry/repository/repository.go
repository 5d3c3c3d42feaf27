package repository

import (
	"context"

	"specsync/internal/registry/domain"
)

// Store persists machine records. The registry writes through: every
// mutation saves the touched machine before the mutating call returns.
type Store interface {
	// LoadAll returns every persisted machine. Called once at startup.
	LoadAll(ctx context.Context) ([]*domain.MachineRecord, error)
	// SaveMachine upserts one machine's full snapshot atomically.
	SaveMachine(ctx context.Context, m *domain.MachineRecord) error
}
