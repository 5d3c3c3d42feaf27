// Package handler exposes the device-authorization HTTP endpoints.
package handler

import (
	"errors"
	"net/http"

	"specsync/internal/apperr"
	"specsync/internal/deviceauth"
	"specsync/internal/server/respond"
)

// Handler serves /api/sync/device/* and /api/sync/oauth/token.
type Handler struct {
	svc *deviceauth.Service
}

// New returns a device-auth handler.
func New(svc *deviceauth.Service) *Handler {
	return &Handler{svc: svc}
}

// Code handles POST /api/sync/device/code.
func (h *Handler) Code(w http.ResponseWriter, r *http.Request) {
	grant, err := h.svc.RequestCode(r.Context())
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, grant)
}

// Activate handles POST /api/sync/device/activate {userCode}.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserCode string `json:"userCode"`
	}
	if err := respond.DecodeJSON(r, &body); err != nil {
		respond.WriteError(w, err)
		return
	}
	if body.UserCode == "" {
		respond.WriteError(w, apperr.Validationf("userCode is required"))
		return
	}
	if err := h.svc.Activate(r.Context(), body.UserCode); err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// tokenResponse mirrors the OAuth device-grant token response shape.
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// Token handles POST /api/sync/oauth/token {deviceCode}. While the code is
// unapproved it returns 400 {"error": "authorization_pending"}, which the
// bridge treats as a poll signal rather than a failure.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceCode string `json:"deviceCode"`
	}
	if err := respond.DecodeJSON(r, &body); err != nil {
		respond.WriteError(w, err)
		return
	}
	if body.DeviceCode == "" {
		respond.WriteError(w, apperr.Validationf("deviceCode is required"))
		return
	}
	token, err := h.svc.Exchange(r.Context(), body.DeviceCode)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthorizationPending) {
			respond.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization_pending"})
			return
		}
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}
