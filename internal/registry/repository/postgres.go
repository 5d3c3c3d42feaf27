package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"specsync/internal/registry/domain"
)

// machineState is the JSONB document stored per machine: everything except
// the columns kept relational for querying.
type machineState struct {
	Projects map[string]*domain.ProjectRecord `json:"projects"`
	Pending  []domain.PendingCommand          `json:"pending"`
}

// PostgresStore persists each machine as one row with a JSONB state
// snapshot, upserted whole so one mutation is one atomic write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LoadAll returns every persisted machine record.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*domain.MachineRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, revoked, last_seen, state FROM machines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load machines: %w", err)
	}
	defer rows.Close()

	var out []*domain.MachineRecord
	for rows.Next() {
		m := &domain.MachineRecord{}
		var state []byte
		if err := rows.Scan(&m.ID, &m.Label, &m.Revoked, &m.LastSeen, &state); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		var st machineState
		if err := json.Unmarshal(state, &st); err != nil {
			return nil, fmt.Errorf("decode machine %s state: %w", m.ID, err)
		}
		m.Projects = st.Projects
		if m.Projects == nil {
			m.Projects = make(map[string]*domain.ProjectRecord)
		}
		m.Pending = st.Pending
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveMachine upserts the machine's full snapshot.
func (s *PostgresStore) SaveMachine(ctx context.Context, m *domain.MachineRecord) error {
	state, err := json.Marshal(machineState{Projects: m.Projects, Pending: m.Pending})
	if err != nil {
		return fmt.Errorf("encode machine %s state: %w", m.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO machines (id, label, revoked, last_seen, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET label = EXCLUDED.label, revoked = EXCLUDED.revoked,
		    last_seen = EXCLUDED.last_seen, state = EXCLUDED.state`,
		m.ID, m.Label, m.Revoked, m.LastSeen, state)
	if err != nil {
		return fmt.Errorf("save machine %s: %w", m.ID, err)
	}
	return nil
}
