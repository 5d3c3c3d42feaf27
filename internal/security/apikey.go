package security

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyVerifier checks a presented x-api-key against the configured key.
// Prefer configuring the bcrypt hash so the plaintext key is not in the
// environment; the plain form is kept for local setups.
type APIKeyVerifier struct {
	plain string
	hash  string
}

// NewAPIKeyVerifier returns a verifier for the configured key. Exactly one
// of plain or bcryptHash should be set; when both are empty, Verify always
// fails (API-key auth disabled).
func NewAPIKeyVerifier(plain, bcryptHash string) *APIKeyVerifier {
	return &APIKeyVerifier{plain: plain, hash: bcryptHash}
}

// Verify reports whether the presented key matches. Constant-time for the
// plain form; bcrypt compare for the hashed form.
func (v *APIKeyVerifier) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	if v.hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(v.hash), []byte(presented)) == nil
	}
	if v.plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.plain), []byte(presented)) == 1
}

// HashAPIKey produces a bcrypt hash of key suitable for SYNC_API_KEY_HASH.
func HashAPIKey(key string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
