package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"revoked", fmt.Errorf("machine m1: %w", ErrMachineRevoked), http.StatusForbidden},
		{"not found", fmt.Errorf("machine m1: %w", ErrNotFound), http.StatusNotFound},
		{"pending", ErrAuthorizationPending, http.StatusBadRequest},
		{"expired", ErrExpired, http.StatusBadRequest},
		{"validation", Validationf("bad %s", "field"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(Validationf("x")) {
		t.Error("IsValidation = false for ValidationError")
	}
	if !IsValidation(fmt.Errorf("wrap: %w", Validationf("x"))) {
		t.Error("IsValidation = false for wrapped ValidationError")
	}
	if IsValidation(errors.New("other")) {
		t.Error("IsValidation = true for a plain error")
	}
}
