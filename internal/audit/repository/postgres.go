package repository

import (
	"context"
	"database/sql"

	"specsync/internal/audit/domain"
)

// PostgresRepository stores audit entries in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one audit entry. The entry must have ID and CreatedAt set.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, machine_id, project_id, spec_name, action, outcome, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.MachineID, nullable(e.ProjectID), nullable(e.SpecName),
		e.Action, e.Outcome, nullable(e.Message), e.CreatedAt)
	return err
}

// ListByMachine returns entries for the machine, newest first, paginated by
// limit and offset.
func (r *PostgresRepository) ListByMachine(ctx context.Context, machineID string, limit, offset int32) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, machine_id, project_id, spec_name, action, outcome, message, created_at
		FROM audit_logs WHERE machine_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		machineID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		e := &domain.Entry{}
		var projectID, specName, message sql.NullString
		if err := rows.Scan(&e.ID, &e.MachineID, &projectID, &specName,
			&e.Action, &e.Outcome, &message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ProjectID = projectID.String
		e.SpecName = specName.String
		e.Message = message.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
