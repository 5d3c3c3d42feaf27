// Package wire defines the JSON shapes shared by the sync ingest API and the
// bridge command channel. Every union carries an explicit "type" discriminant
// so the encoding is independent of any host-language enum.
package wire

import (
	"fmt"
	"time"

	"specsync/internal/registry/domain"
)

// EventType discriminates sync events in an ingest batch.
type EventType string

const (
	// EventSnapshot replaces a project's entire spec map. Emitted once per
	// project on bridge startup so server state is re-anchored to ground truth.
	EventSnapshot EventType = "snapshot"
	// EventSpecChanged upserts a single spec record.
	EventSpecChanged EventType = "spec-changed"
	// EventSpecDeleted removes a single spec record.
	EventSpecDeleted EventType = "spec-deleted"
	// EventHeartbeat refreshes the machine's last-seen timestamp only.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one entry of an ingest batch. Events apply strictly in array order.
type Event struct {
	Type EventType `json:"type"`
	// Specs is the full project snapshot; only for EventSnapshot. May be empty.
	Specs []domain.SpecRecord `json:"specs,omitempty"`
	// Spec is the upserted record; required for EventSpecChanged.
	Spec *domain.SpecRecord `json:"spec,omitempty"`
	// SpecName is the deleted record's name; required for EventSpecDeleted.
	SpecName string `json:"specName,omitempty"`
}

// Validate checks the discriminant and per-variant required fields.
func (e Event) Validate() error {
	switch e.Type {
	case EventSnapshot:
		for i := range e.Specs {
			if e.Specs[i].Name == "" {
				return fmt.Errorf("snapshot: spec %d has no name", i)
			}
		}
	case EventSpecChanged:
		if e.Spec == nil || e.Spec.Name == "" {
			return fmt.Errorf("spec-changed: missing spec or spec name")
		}
	case EventSpecDeleted:
		if e.SpecName == "" {
			return fmt.Errorf("spec-deleted: missing specName")
		}
	case EventHeartbeat:
		// No payload.
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// EventsRequest is the body of POST /api/sync/events.
type EventsRequest struct {
	MachineID    string  `json:"machineId"`
	MachineLabel string  `json:"machineLabel,omitempty"`
	ProjectID    string  `json:"projectId"`
	ProjectName  string  `json:"projectName,omitempty"`
	Events       []Event `json:"events"`
}

// CommandStatus is the outcome reported in a CommandResult.
type CommandStatus string

const (
	StatusOK       CommandStatus = "ok"
	StatusConflict CommandStatus = "conflict"
	StatusError    CommandStatus = "error"
)

// FrameType discriminates WebSocket frames. One JSON message is one frame.
type FrameType string

const (
	// FrameHello is the first bridge→server frame after connect.
	FrameHello FrameType = "hello"
	// FrameHeartbeat is the periodic bridge→server liveness frame.
	FrameHeartbeat FrameType = "heartbeat"
	// FrameCommandResult acknowledges exactly one pending command.
	FrameCommandResult FrameType = "command-result"
	// FramePendingCommand is a server→bridge command push.
	FramePendingCommand FrameType = "pending-command"
)

// Frame is the single envelope for both directions of the command channel.
type Frame struct {
	Type           FrameType              `json:"type"`
	Hello          *Hello                 `json:"hello,omitempty"`
	Heartbeat      *Heartbeat             `json:"heartbeat,omitempty"`
	CommandResult  *CommandResult         `json:"commandResult,omitempty"`
	PendingCommand *domain.PendingCommand `json:"pendingCommand,omitempty"`
}

// Hello identifies the machine on connect. The server replies with every
// currently pending command for that machine.
type Hello struct {
	MachineID    string `json:"machineId"`
	MachineLabel string `json:"machineLabel,omitempty"`
	Version      string `json:"version,omitempty"`
}

// Heartbeat reports bridge liveness and the depth of its offline queue.
type Heartbeat struct {
	QueueDepth int `json:"queueDepth"`
}

// CommandResult reports the outcome of one executed command.
// CurrentContentHash is set on "conflict" so the operator sees the hash
// their edit must be reapplied against.
type CommandResult struct {
	CommandID          string        `json:"commandId"`
	Status             CommandStatus `json:"status"`
	Message            string        `json:"message,omitempty"`
	CurrentContentHash string        `json:"currentContentHash,omitempty"`
}

// Validate checks the frame discriminant and the matching payload.
func (f Frame) Validate() error {
	switch f.Type {
	case FrameHello:
		if f.Hello == nil || f.Hello.MachineID == "" {
			return fmt.Errorf("hello: missing machineId")
		}
	case FrameHeartbeat:
		if f.Heartbeat == nil {
			return fmt.Errorf("heartbeat: missing payload")
		}
	case FrameCommandResult:
		if f.CommandResult == nil || f.CommandResult.CommandID == "" {
			return fmt.Errorf("command-result: missing commandId")
		}
		switch f.CommandResult.Status {
		case StatusOK, StatusConflict, StatusError:
		default:
			return fmt.Errorf("command-result: unknown status %q", f.CommandResult.Status)
		}
	case FramePendingCommand:
		if f.PendingCommand == nil || f.PendingCommand.ID == "" {
			return fmt.Errorf("pending-command: missing command id")
		}
		if err := f.PendingCommand.Command.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

// MachineSummary is the GET /api/sync/machines list entry.
type MachineSummary struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Status       string    `json:"status"` // "online" | "offline"
	Revoked      bool      `json:"revoked"`
	LastSeen     time.Time `json:"lastSeen"`
	ProjectCount int       `json:"projectCount"`
	PendingCount int       `json:"pendingCount"`
}
