package repository

import (
	"context"
	"time"
)

// Token is one issued bearer credential. ExpiresAt nil means no expiry.
type Token struct {
	Hash      string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// TokenStore persists the token table that backs bearer auth. A token
// is valid iff its hash is present and unexpired.
type TokenStore interface {
	Put(ctx context.Context, t *Token) error
	// Get returns the token for hash, or nil if absent.
	Get(ctx context.Context, hash string) (*Token, error)
}
