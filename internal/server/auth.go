package server

import (
	"context"
	"net/http"
	"strings"

	"specsync/internal/apperr"
	"specsync/internal/security"
	"specsync/internal/server/respond"
)

const bearerPrefix = "bearer "

// TokenValidator checks a bearer token against the token table.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) bool
}

// RequireCredential returns middleware that admits a request carrying
// either a valid x-api-key or a valid Bearer token. Everything else gets a
// 401 without reaching the handler.
func RequireCredential(apiKeys *security.APIKeyVerifier, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("x-api-key"); key != "" && apiKeys != nil && apiKeys.Verify(key) {
				next.ServeHTTP(w, r)
				return
			}
			if token := extractBearer(r); token != "" && tokens != nil && tokens.ValidateToken(r.Context(), token) {
				next.ServeHTTP(w, r)
				return
			}
			respond.WriteError(w, apperr.ErrUnauthorized)
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
