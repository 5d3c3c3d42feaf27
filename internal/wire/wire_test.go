package wire

import (
	"testing"

	"specsync/internal/registry/domain"
)

func TestEvent_Validate(t *testing.T) {
	rec := domain.SpecRecord{Name: "auth", ContentHash: "h1"}
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "empty snapshot", event: Event{Type: EventSnapshot}},
		{name: "snapshot with specs", event: Event{Type: EventSnapshot, Specs: []domain.SpecRecord{rec}}},
		{name: "snapshot with unnamed spec", event: Event{Type: EventSnapshot, Specs: []domain.SpecRecord{{}}}, wantErr: true},
		{name: "spec changed", event: Event{Type: EventSpecChanged, Spec: &rec}},
		{name: "spec changed without spec", event: Event{Type: EventSpecChanged}, wantErr: true},
		{name: "spec deleted", event: Event{Type: EventSpecDeleted, SpecName: "auth"}},
		{name: "spec deleted without name", event: Event{Type: EventSpecDeleted}, wantErr: true},
		{name: "heartbeat", event: Event{Type: EventHeartbeat}},
		{name: "unknown type", event: Event{Type: "resync"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{name: "hello", frame: Frame{Type: FrameHello, Hello: &Hello{MachineID: "m1"}}},
		{name: "hello without machine", frame: Frame{Type: FrameHello, Hello: &Hello{}}, wantErr: true},
		{name: "heartbeat", frame: Frame{Type: FrameHeartbeat, Heartbeat: &Heartbeat{QueueDepth: 3}}},
		{name: "heartbeat without payload", frame: Frame{Type: FrameHeartbeat}, wantErr: true},
		{name: "result ok", frame: Frame{Type: FrameCommandResult, CommandResult: &CommandResult{CommandID: "c1", Status: StatusOK}}},
		{name: "result conflict", frame: Frame{Type: FrameCommandResult, CommandResult: &CommandResult{CommandID: "c1", Status: StatusConflict, CurrentContentHash: "h2"}}},
		{name: "result with unknown status", frame: Frame{Type: FrameCommandResult, CommandResult: &CommandResult{CommandID: "c1", Status: "partial"}}, wantErr: true},
		{name: "result without command id", frame: Frame{Type: FrameCommandResult, CommandResult: &CommandResult{Status: StatusOK}}, wantErr: true},
		{
			name: "pending command",
			frame: Frame{Type: FramePendingCommand, PendingCommand: &domain.PendingCommand{
				ID:      "c1",
				Command: domain.Command{Type: domain.CommandRevokeMachine},
			}},
		},
		{
			name: "pending command with invalid payload",
			frame: Frame{Type: FramePendingCommand, PendingCommand: &domain.PendingCommand{
				ID:      "c1",
				Command: domain.Command{Type: domain.CommandRenameMachine},
			}},
			wantErr: true,
		},
		{name: "unknown frame type", frame: Frame{Type: "goodbye"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
