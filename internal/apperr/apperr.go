// Package apperr defines the error taxonomy shared by the registry and the
// HTTP surface, and its mapping to status codes. Conflicts are deliberately
// absent: a hash mismatch is a structured command result, not an error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized covers a missing, invalid, or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMachineRevoked is returned for ingestion from a revoked machine.
	// No mutation happens.
	ErrMachineRevoked = errors.New("machine revoked")
	// ErrNotFound covers unknown machines, projects, and specs.
	ErrNotFound = errors.New("not found")
	// ErrAuthorizationPending is the device flow's "approved not yet" signal.
	ErrAuthorizationPending = errors.New("authorization_pending")
	// ErrExpired is returned for a device code past its TTL; terminal.
	ErrExpired = errors.New("expired")
)

// ValidationError marks a malformed payload. The whole batch or command is
// rejected atomically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMachineRevoked):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuthorizationPending), errors.Is(err, ErrExpired), IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
