// Package server wires the HTTP surface: routing, credential middleware,
// response helpers, and request metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	deviceauthhandler "specsync/internal/deviceauth/handler"
	"specsync/internal/security"
	"specsync/internal/server/respond"
	synchandler "specsync/internal/sync/handler"
)

// Pinger is anything with a health-checkable connection (e.g. *sql.DB).
type Pinger interface {
	Ping() error
}

// Deps holds the handlers and policies the router composes.
type Deps struct {
	Sync   *synchandler.Handler
	Device *deviceauthhandler.Handler
	// ServeWS upgrades GET /api/sync/bridge/ws to the command channel.
	ServeWS http.HandlerFunc
	// APIKeys and Tokens back the credential middleware.
	APIKeys *security.APIKeyVerifier
	Tokens  TokenValidator
	// HealthPinger is pinged by /healthz; nil skips the DB check.
	HealthPinger Pinger
	// Metrics, when non-nil, wraps every route (request count/duration).
	Metrics func(http.Handler) http.Handler
}

// NewRouter builds the full route table. Device-auth endpoints are public
// (they are how a credential is obtained); everything else under /api/sync
// requires x-api-key or a Bearer token.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.HealthPinger != nil {
			if err := deps.HealthPinger.Ping(); err != nil {
				respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/device/code", deps.Device.Code)
		r.Post("/device/activate", deps.Device.Activate)
		r.Post("/oauth/token", deps.Device.Token)

		r.Group(func(r chi.Router) {
			r.Use(RequireCredential(deps.APIKeys, deps.Tokens))
			r.Post("/events", deps.Sync.Events)
			r.Get("/machines", deps.Sync.ListMachines)
			r.Get("/machines/{id}", deps.Sync.GetMachine)
			r.Patch("/machines/{id}", deps.Sync.PatchMachine)
			r.Delete("/machines/{id}", deps.Sync.DeleteMachine)
			r.Post("/machines/{id}/metadata", deps.Sync.ApplyMetadata)
			r.Post("/machines/{id}/execution", deps.Sync.Execution)
			r.Get("/audit", deps.Sync.ListAudit)
			r.Get("/bridge/ws", deps.ServeWS)
		})
	})

	return r
}
