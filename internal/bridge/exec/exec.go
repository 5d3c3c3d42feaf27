// Package exec executes server-pushed commands against local state and
// produces the acknowledgement for each one.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"specsync/internal/bridge/specfile"
	"specsync/internal/bridge/state"
	"specsync/internal/registry/domain"
	"specsync/internal/wire"
)

// Executor applies commands to the bridge's projects and config. Every
// processed command leaves a line in the local audit log.
type Executor struct {
	projects map[string]state.ProjectRef // keyed by project id
	cfg      *state.Handle
	audit    *state.AuditLog
	// events receives the follow-up spec-changed event after a metadata
	// apply, so the server converges without waiting for the watcher.
	events chan<- state.Item
}

// New returns an executor over the resolved projects.
func New(projects []state.ProjectRef, cfg *state.Handle, audit *state.AuditLog, events chan<- state.Item) *Executor {
	byID := make(map[string]state.ProjectRef, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	return &Executor{projects: byID, cfg: cfg, audit: audit, events: events}
}

// Execute runs one pending command and returns its result. Execution
// never panics the channel: unknown or failing commands produce an
// "error" result so the server can dequeue them.
func (e *Executor) Execute(ctx context.Context, pc domain.PendingCommand) wire.CommandResult {
	res := e.run(ctx, pc)
	if err := e.audit.Append("command %s %s: %s %s", pc.Command.Type, pc.ID, res.Status, res.Message); err != nil {
		log.Printf("exec: audit log: %v", err)
	}
	return res
}

func (e *Executor) run(ctx context.Context, pc domain.PendingCommand) wire.CommandResult {
	result := func(status wire.CommandStatus, msg string) wire.CommandResult {
		return wire.CommandResult{CommandID: pc.ID, Status: status, Message: msg}
	}
	switch pc.Command.Type {
	case domain.CommandApplyMetadata:
		return e.applyMetadata(ctx, pc.ID, pc.Command.ApplyMetadata)
	case domain.CommandRenameMachine:
		label := pc.Command.RenameMachine.Label
		if err := e.cfg.SetLabel(label); err != nil {
			return result(wire.StatusError, err.Error())
		}
		return result(wire.StatusOK, fmt.Sprintf("label set to %q", label))
	case domain.CommandRevokeMachine:
		if err := e.cfg.ClearToken(); err != nil {
			return result(wire.StatusError, err.Error())
		}
		return result(wire.StatusOK, "credentials cleared")
	case domain.CommandExecutionRequest:
		// Delegated elsewhere; the contract here is log-and-acknowledge.
		req := pc.Command.ExecutionRequest
		return result(wire.StatusOK, fmt.Sprintf("execution request %s received", req.RequestID))
	default:
		return result(wire.StatusError, fmt.Sprintf("unknown command type %q", pc.Command.Type))
	}
}

// applyMetadata mutates a spec's sidecar metadata, guarded by the
// expected content hash when one is supplied.
func (e *Executor) applyMetadata(ctx context.Context, cmdID string, cmd *domain.ApplyMetadata) wire.CommandResult {
	result := wire.CommandResult{CommandID: cmdID}

	project, ok := e.projects[cmd.ProjectID]
	if !ok {
		result.Status = wire.StatusError
		result.Message = fmt.Sprintf("unknown project %s", cmd.ProjectID)
		return result
	}
	rec, err := specfile.LoadRecord(project.Path, cmd.SpecName)
	if errors.Is(err, specfile.ErrNotFound) {
		result.Status = wire.StatusError
		result.Message = fmt.Sprintf("spec %s not found", cmd.SpecName)
		return result
	}
	if err != nil {
		result.Status = wire.StatusError
		result.Message = err.Error()
		return result
	}
	if cmd.ExpectedContentHash != "" && cmd.ExpectedContentHash != rec.ContentHash {
		result.Status = wire.StatusConflict
		result.Message = "content changed since the command was issued"
		result.CurrentContentHash = rec.ContentHash
		return result
	}

	meta, err := specfile.LoadMeta(project.Path, cmd.SpecName)
	if err != nil {
		result.Status = wire.StatusError
		result.Message = err.Error()
		return result
	}
	if cmd.Status != "" {
		meta.Status = cmd.Status
	}
	if cmd.Priority != "" {
		meta.Priority = cmd.Priority
	}
	if cmd.Tags != nil {
		meta.Tags = append([]string(nil), cmd.Tags...)
	}
	if cmd.Parent != nil {
		meta.Parent = *cmd.Parent
	}
	for _, dep := range cmd.AddDependsOn {
		if !slices.Contains(meta.DependsOn, dep) {
			meta.DependsOn = append(meta.DependsOn, dep)
		}
	}
	for _, dep := range cmd.RemoveDependsOn {
		if i := slices.Index(meta.DependsOn, dep); i >= 0 {
			meta.DependsOn = slices.Delete(meta.DependsOn, i, i+1)
		}
	}
	if err := specfile.SaveMeta(project.Path, cmd.SpecName, meta); err != nil {
		result.Status = wire.StatusError
		result.Message = err.Error()
		return result
	}

	// Re-read so the follow-up event carries exactly what is on disk.
	updated, err := specfile.LoadRecord(project.Path, cmd.SpecName)
	if err == nil {
		item := state.Item{
			ProjectID:   project.ID,
			ProjectName: project.Name,
			Event:       wire.Event{Type: wire.EventSpecChanged, Spec: &updated},
		}
		select {
		case e.events <- item:
		case <-ctx.Done():
		}
	}
	result.Status = wire.StatusOK
	result.Message = fmt.Sprintf("metadata applied to %s", cmd.SpecName)
	return result
}
