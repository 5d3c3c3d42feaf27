// Package security generates and hashes the opaque credentials used by the
// sync API: bearer tokens, device/user codes, and the operator API key.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// userCodeAlphabet omits 0/O, 1/I, and vowels so codes are unambiguous when
// read aloud and never spell anything.
const userCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ23456789"

// GenerateToken returns a 48-hex-char opaque bearer token from crypto/rand.
// Tokens carry no claims; they are valid only while present in the token
// table and unexpired.
func GenerateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateDeviceCode returns a 32-hex-char device code from crypto/rand.
func GenerateDeviceCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateUserCode returns a short human-enterable code like "BCDF-2345".
func GenerateUserCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, 0, 9)
	for i, c := range b {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, userCodeAlphabet[int(c)%len(userCodeAlphabet)])
	}
	return string(out), nil
}

// HashToken returns a SHA-256 hash of the token string, hex-encoded. The
// token table stores only hashes, never raw tokens.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's
// hash with the stored hash.
func TokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
