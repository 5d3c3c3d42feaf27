// Package handler exposes the sync ingest and machine-management HTTP API.
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"specsync/internal/apperr"
	auditrepo "specsync/internal/audit/repository"
	"specsync/internal/registry"
	"specsync/internal/registry/domain"
	"specsync/internal/server/respond"
	"specsync/internal/wire"
)

// Handler serves the /api/sync endpoints backed by the registry.
type Handler struct {
	registry *registry.Registry
	audit    auditrepo.Repository
	// online reports whether a live command channel exists for a machine.
	online func(string) bool
}

// New returns a sync API handler. online may be nil (everything reports
// offline); audit may be nil (audit listing returns 404).
func New(reg *registry.Registry, audit auditrepo.Repository, online func(string) bool) *Handler {
	return &Handler{registry: reg, audit: audit, online: online}
}

// successBody is the minimal {"success": true} response.
type successBody struct {
	Success bool `json:"success"`
}

// Events handles POST /api/sync/events: one batched ingest call from a
// bridge. First contact creates the machine; a malformed batch is rejected
// atomically.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var req wire.EventsRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.WriteError(w, err)
		return
	}
	if req.MachineID == "" {
		respond.WriteError(w, apperr.Validationf("machineId is required"))
		return
	}
	// Revoked machines must be rejected before EnsureMachine refreshes
	// anything, and must not have their label updated.
	if !h.registry.Revoked(req.MachineID) {
		if err := h.registry.EnsureMachine(r.Context(), req.MachineID, req.MachineLabel); err != nil {
			respond.WriteError(w, err)
			return
		}
	}
	if err := h.registry.IngestEvents(r.Context(), req.MachineID, req.ProjectID, req.ProjectName, req.Events); err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, successBody{Success: true})
}

// ListMachines handles GET /api/sync/machines.
func (h *Handler) ListMachines(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.registry.ListMachines(h.online))
}

// machineDetail is the GET /api/sync/machines/{id} response.
type machineDetail struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Status   string          `json:"status"`
	Revoked  bool            `json:"revoked"`
	LastSeen time.Time       `json:"lastSeen"`
	Projects []projectDetail `json:"projects"`
	Pending  []pendingDetail `json:"pending"`
}

type projectDetail struct {
	ID          string              `json:"id"`
	Name        string              `json:"name,omitempty"`
	LastUpdated time.Time           `json:"lastUpdated"`
	Specs       []domain.SpecRecord `json:"specs"`
}

type pendingDetail struct {
	ID        string             `json:"id"`
	Type      domain.CommandType `json:"type"`
	CreatedAt time.Time          `json:"createdAt"`
}

// GetMachine handles GET /api/sync/machines/{id}: full machine detail with
// per-project spec records. History stays listable after revocation.
func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.GetMachine(chi.URLParam(r, "id"))
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	status := "offline"
	if h.online != nil && h.online(m.ID) {
		status = "online"
	}
	detail := machineDetail{
		ID: m.ID, Label: m.Label, Status: status, Revoked: m.Revoked, LastSeen: m.LastSeen,
		Projects: make([]projectDetail, 0, len(m.Projects)),
		Pending:  make([]pendingDetail, 0, len(m.Pending)),
	}
	for _, p := range m.Projects {
		pd := projectDetail{ID: p.ID, Name: p.Name, LastUpdated: p.LastUpdated, Specs: make([]domain.SpecRecord, 0, len(p.Specs))}
		for _, rec := range p.Specs {
			// Content can be large; the detail view carries metadata only.
			cp := *rec
			cp.Content = ""
			pd.Specs = append(pd.Specs, cp)
		}
		detail.Projects = append(detail.Projects, pd)
	}
	for _, pc := range m.Pending {
		detail.Pending = append(detail.Pending, pendingDetail{ID: pc.ID, Type: pc.Command.Type, CreatedAt: pc.CreatedAt})
	}
	respond.WriteJSON(w, http.StatusOK, detail)
}

// PatchMachine handles PATCH /api/sync/machines/{id}: renames the machine
// server-side and enqueues a RenameMachine command for the bridge.
func (h *Handler) PatchMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Label string `json:"label"`
	}
	if err := respond.DecodeJSON(r, &body); err != nil {
		respond.WriteError(w, err)
		return
	}
	if err := h.registry.Rename(r.Context(), id, body.Label); err != nil {
		respond.WriteError(w, err)
		return
	}
	if _, err := h.registry.EnqueueCommand(r.Context(), id, domain.Command{
		Type:          domain.CommandRenameMachine,
		RenameMachine: &domain.RenameMachine{Label: body.Label},
	}); err != nil {
		respond.WriteError(w, err)
		return
	}
	for _, s := range h.registry.ListMachines(h.online) {
		if s.ID == id {
			respond.WriteJSON(w, http.StatusOK, s)
			return
		}
	}
	respond.WriteError(w, apperr.ErrNotFound)
}

// DeleteMachine handles DELETE /api/sync/machines/{id}: revokes the machine
// (one-way) and enqueues a RevokeMachine command so the bridge drops its
// credential. History is retained.
func (h *Handler) DeleteMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Revoke(r.Context(), id); err != nil {
		respond.WriteError(w, err)
		return
	}
	if _, err := h.registry.EnqueueCommand(r.Context(), id, domain.Command{Type: domain.CommandRevokeMachine}); err != nil {
		respond.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Execution handles POST /api/sync/machines/{id}/execution: enqueues an
// opaque execution request. The bridge contract is log-and-acknowledge.
func (h *Handler) Execution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Payload string `json:"payload"`
	}
	if err := respond.DecodeJSON(r, &body); err != nil {
		respond.WriteError(w, err)
		return
	}
	requestID := uuid.New().String()
	pc, err := h.registry.EnqueueCommand(r.Context(), id, domain.Command{
		Type:             domain.CommandExecutionRequest,
		ExecutionRequest: &domain.ExecutionRequest{RequestID: requestID, Payload: body.Payload},
	})
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"commandId": pc.ID,
		"requestId": requestID,
	})
}

// ApplyMetadata handles POST /api/sync/machines/{id}/metadata: enqueues an
// apply-metadata command targeting one spec. The optimistic-concurrency
// check happens on the bridge; a stale expectedContentHash surfaces later
// as a "conflict" command result, not as a failure here.
func (h *Handler) ApplyMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body domain.ApplyMetadata
	if err := respond.DecodeJSON(r, &body); err != nil {
		respond.WriteError(w, err)
		return
	}
	pc, err := h.registry.EnqueueCommand(r.Context(), id, domain.Command{
		Type:          domain.CommandApplyMetadata,
		ApplyMetadata: &body,
	})
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"commandId": pc.ID,
	})
}

// ListAudit handles GET /api/sync/audit?machineId=&limit=&offset=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respond.WriteError(w, fmt.Errorf("audit log: %w", apperr.ErrNotFound))
		return
	}
	machineID := r.URL.Query().Get("machineId")
	if machineID == "" {
		respond.WriteError(w, apperr.Validationf("machineId is required"))
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	entries, err := h.audit.ListByMachine(r.Context(), machineID, limit, offset)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, entries)
}

func queryInt(r *http.Request, key string, def int32) int32 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}
