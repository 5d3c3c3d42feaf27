package repository

import (
	"context"

	"specsync/internal/audit/domain"
)

// Repository defines persistence for audit entries.
type Repository interface {
	Append(ctx context.Context, e *domain.Entry) error
	ListByMachine(ctx context.Context, machineID string, limit, offset int32) ([]*domain.Entry, error)
}
