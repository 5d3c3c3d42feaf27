package domain

import "time"

// Entry is one append-only audit record: a command issued to a machine or a
// result received from it. Entries are never updated or deleted.
type Entry struct {
	ID        string    `json:"id"`
	MachineID string    `json:"machineId"`
	ProjectID string    `json:"projectId,omitempty"`
	SpecName  string    `json:"specName,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
