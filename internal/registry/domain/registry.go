// Package domain holds the server-side registry data model: spec records,
// projects, machines, and the pending-command queue.
package domain

import "time"

// SpecRecord is the server's view of one local spec. ContentHash is the
// sha256 hex digest of the spec content and doubles as the
// optimistic-concurrency token for ApplyMetadata.
type SpecRecord struct {
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Parent      string    `json:"parent,omitempty"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"contentHash"`
	DependsOn   []string  `json:"dependsOn,omitempty"`
	FilePath    string    `json:"filePath,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ProjectRecord groups the specs reported for one local project directory.
// Projects are created on first reference and never deleted.
type ProjectRecord struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name,omitempty"`
	Path        string                 `json:"path,omitempty"`
	Specs       map[string]*SpecRecord `json:"specs"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

// MachineRecord is the per-machine registry entry. Revoked is one-way: a
// revoked machine rejects new event ingestion but keeps its history.
type MachineRecord struct {
	ID       string                    `json:"id"`
	Label    string                    `json:"label"`
	Revoked  bool                      `json:"revoked"`
	LastSeen time.Time                 `json:"lastSeen"`
	Projects map[string]*ProjectRecord `json:"projects"`
	// Pending is the ordered command queue. Entries are removed only by a
	// matching acknowledgement, never because they were transmitted.
	Pending []PendingCommand `json:"pending"`
}

// PendingCommand is one queued, at-least-once-delivered command.
type PendingCommand struct {
	ID        string    `json:"id"`
	Command   Command   `json:"command"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project returns the project with the given id, creating it if absent.
func (m *MachineRecord) Project(id, name string, now time.Time) *ProjectRecord {
	if m.Projects == nil {
		m.Projects = make(map[string]*ProjectRecord)
	}
	p, ok := m.Projects[id]
	if !ok {
		p = &ProjectRecord{ID: id, Specs: make(map[string]*SpecRecord), LastUpdated: now}
		m.Projects[id] = p
	}
	if name != "" {
		p.Name = name
	}
	return p
}

// SpecCount returns the total number of specs across all projects.
func (m *MachineRecord) SpecCount() int {
	n := 0
	for _, p := range m.Projects {
		n += len(p.Specs)
	}
	return n
}
