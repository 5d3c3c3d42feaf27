package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresTokenStore stores tokens in the access_tokens table so issued
// credentials survive server restarts.
type PostgresTokenStore struct {
	db *sql.DB
}

// NewPostgresTokenStore returns a TokenStore backed by the given db.
func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

// Put inserts the token. Re-inserting the same hash is a no-op.
func (s *PostgresTokenStore) Put(ctx context.Context, t *Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO NOTHING`,
		t.Hash, t.IssuedAt, t.ExpiresAt)
	return err
}

// Get returns the token for hash, or nil if absent.
func (s *PostgresTokenStore) Get(ctx context.Context, hash string) (*Token, error) {
	t := &Token{}
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT token_hash, issued_at, expires_at FROM access_tokens WHERE token_hash = $1`,
		hash).Scan(&t.Hash, &t.IssuedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t.ExpiresAt = &expires.Time
	}
	return t, nil
}
