// Package registry owns all server-side sync state: machines, their
// projects and specs, and each machine's pending-command queue. One mutex
// guards the whole registry; every mutating call persists the touched
// machine before returning.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"specsync/internal/apperr"
	"specsync/internal/audit"
	"specsync/internal/registry/domain"
	"specsync/internal/registry/repository"
	"specsync/internal/wire"
)

// Pusher delivers a command over a live channel if one is registered for
// the machine. TryPush returns false when the machine is offline; the
// command stays queued either way.
type Pusher interface {
	TryPush(machineID string, cmd domain.PendingCommand) bool
}

// Registry is the in-memory machine registry with write-through persistence.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*domain.MachineRecord
	store    repository.Store
	recorder *audit.Recorder
	pusher   Pusher
	nowF     func() time.Time
}

// New returns a Registry backed by store. recorder may be nil.
func New(store repository.Store, recorder *audit.Recorder) *Registry {
	return &Registry{
		machines: make(map[string]*domain.MachineRecord),
		store:    store,
		recorder: recorder,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SetPusher wires the live command channel hub. Called once at startup,
// before the registry serves requests.
func (r *Registry) SetPusher(p Pusher) { r.pusher = p }

// Load populates the registry from the store. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	machines, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range machines {
		if m.Projects == nil {
			m.Projects = make(map[string]*domain.ProjectRecord)
		}
		r.machines[m.ID] = m
	}
	return nil
}

// EnsureMachine returns the machine with the given id, creating it on first
// contact. A non-empty label updates the stored label, except on revoked
// machines: those may still connect for command delivery, but their
// metadata is frozen. Idempotent.
func (r *Registry) EnsureMachine(ctx context.Context, id, label string) error {
	if id == "" {
		return apperr.Validationf("machineId is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[id]
	if !ok {
		m = &domain.MachineRecord{
			ID:       id,
			Label:    label,
			LastSeen: r.nowF(),
			Projects: make(map[string]*domain.ProjectRecord),
		}
		r.machines[id] = m
		return r.store.SaveMachine(ctx, m)
	}
	if label != "" && label != m.Label && !m.Revoked {
		m.Label = label
		return r.store.SaveMachine(ctx, m)
	}
	return nil
}

// IngestEvents applies a batch of sync events for one machine and project,
// strictly in array order. The batch is validated up front and rejected
// atomically: a malformed batch mutates nothing, so retries are safe.
// Unknown machines get ErrNotFound, revoked machines ErrMachineRevoked.
func (r *Registry) IngestEvents(ctx context.Context, machineID, projectID, projectName string, events []wire.Event) error {
	if machineID == "" {
		return apperr.Validationf("machineId is required")
	}
	if projectID == "" {
		return apperr.Validationf("projectId is required")
	}
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return apperr.Validationf("event %d: %v", i, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	if m.Revoked {
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrMachineRevoked)
	}

	now := r.nowF()
	m.LastSeen = now
	for _, ev := range events {
		switch ev.Type {
		case wire.EventSnapshot:
			p := m.Project(projectID, projectName, now)
			specs := make(map[string]*domain.SpecRecord, len(ev.Specs))
			for i := range ev.Specs {
				rec := ev.Specs[i]
				specs[rec.Name] = &rec
			}
			p.Specs = specs
			p.LastUpdated = now
		case wire.EventSpecChanged:
			p := m.Project(projectID, projectName, now)
			rec := *ev.Spec
			p.Specs[rec.Name] = &rec
			p.LastUpdated = now
		case wire.EventSpecDeleted:
			p := m.Project(projectID, projectName, now)
			delete(p.Specs, ev.SpecName)
			p.LastUpdated = now
		case wire.EventHeartbeat:
			// LastSeen already refreshed above.
		}
	}
	return r.store.SaveMachine(ctx, m)
}

// EnqueueCommand durably appends a command to the machine's queue and, if a
// live channel is registered, pushes it immediately. The command stays
// queued until acknowledged regardless of the live-delivery outcome.
func (r *Registry) EnqueueCommand(ctx context.Context, machineID string, cmd domain.Command) (domain.PendingCommand, error) {
	if err := cmd.Validate(); err != nil {
		return domain.PendingCommand{}, apperr.Validationf("%v", err)
	}

	r.mu.Lock()
	m, ok := r.machines[machineID]
	if !ok {
		r.mu.Unlock()
		return domain.PendingCommand{}, fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	pc := domain.PendingCommand{ID: uuid.New().String(), Command: cmd, CreatedAt: r.nowF()}
	m.Pending = append(m.Pending, pc)
	err := r.store.SaveMachine(ctx, m)
	if err != nil {
		m.Pending = m.Pending[:len(m.Pending)-1]
		r.mu.Unlock()
		return domain.PendingCommand{}, err
	}
	r.mu.Unlock()

	projectID, specName := commandTarget(cmd)
	r.recorder.Record(ctx, machineID, projectID, specName, string(cmd.Type), "enqueued", "")
	if r.pusher != nil {
		r.pusher.TryPush(machineID, pc)
	}
	return pc, nil
}

// Acknowledge removes the matching pending command and appends one audit
// entry with the reported status. Unknown command ids are ignored, not
// errors, which makes repeated acknowledgement a no-op.
func (r *Registry) Acknowledge(ctx context.Context, machineID, commandID string, status wire.CommandStatus, message string) error {
	r.mu.Lock()
	m, ok := r.machines[machineID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	idx := -1
	for i := range m.Pending {
		if m.Pending[i].ID == commandID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	acked := m.Pending[idx]
	m.Pending = append(m.Pending[:idx], m.Pending[idx+1:]...)
	err := r.store.SaveMachine(ctx, m)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	projectID, specName := commandTarget(acked.Command)
	r.recorder.Record(ctx, machineID, projectID, specName, string(acked.Command.Type), string(status), message)
	return nil
}

// PendingCommands returns a copy of the machine's queue, oldest first.
// Used to replay every pending command on Hello.
func (r *Registry) PendingCommands(machineID string) []domain.PendingCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return nil
	}
	out := make([]domain.PendingCommand, len(m.Pending))
	copy(out, m.Pending)
	return out
}

// Touch refreshes the machine's last-seen timestamp (Hello and channel
// heartbeats).
func (r *Registry) Touch(ctx context.Context, machineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	m.LastSeen = r.nowF()
	return r.store.SaveMachine(ctx, m)
}

// Rename updates the machine's server-side label.
func (r *Registry) Rename(ctx context.Context, machineID, label string) error {
	if label == "" {
		return apperr.Validationf("label is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	m.Label = label
	return r.store.SaveMachine(ctx, m)
}

// Revoke marks the machine revoked. One-way: there is no un-revoke.
// Already-queued commands stay in place; project history is retained.
func (r *Registry) Revoke(ctx context.Context, machineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	if m.Revoked {
		return nil
	}
	m.Revoked = true
	return r.store.SaveMachine(ctx, m)
}

// ListMachines returns one summary per machine, sorted by id. online
// reports whether a live channel is registered for the id; it may be nil.
func (r *Registry) ListMachines(online func(string) bool) []wire.MachineSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.MachineSummary, 0, len(r.machines))
	for _, m := range r.machines {
		status := "offline"
		if online != nil && online(m.ID) {
			status = "online"
		}
		out = append(out, wire.MachineSummary{
			ID:           m.ID,
			Label:        m.Label,
			Status:       status,
			Revoked:      m.Revoked,
			LastSeen:     m.LastSeen,
			ProjectCount: len(m.Projects),
			PendingCount: len(m.Pending),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetMachine returns a deep copy of the machine record, detached from
// registry state.
func (r *Registry) GetMachine(machineID string) (*domain.MachineRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	if !ok {
		return nil, fmt.Errorf("machine %s: %w", machineID, apperr.ErrNotFound)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	cp := &domain.MachineRecord{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Revoked reports whether the machine exists and is revoked.
func (r *Registry) Revoked(machineID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[machineID]
	return ok && m.Revoked
}

// commandTarget extracts the project/spec context a command addresses, for
// audit entries.
func commandTarget(cmd domain.Command) (projectID, specName string) {
	if cmd.Type == domain.CommandApplyMetadata && cmd.ApplyMetadata != nil {
		return cmd.ApplyMetadata.ProjectID, cmd.ApplyMetadata.SpecName
	}
	return "", ""
}
