package domain

import "fmt"

// CommandType is the wire discriminant for the closed command union.
type CommandType string

const (
	CommandApplyMetadata    CommandType = "apply-metadata"
	CommandRenameMachine    CommandType = "rename-machine"
	CommandRevokeMachine    CommandType = "revoke-machine"
	CommandExecutionRequest CommandType = "execution-request"
)

// Command is a tagged union: Type selects exactly one of the variant
// pointers. RevokeMachine carries no payload. The union is closed; Validate
// rejects unknown types and mismatched variants.
type Command struct {
	Type             CommandType       `json:"type"`
	ApplyMetadata    *ApplyMetadata    `json:"applyMetadata,omitempty"`
	RenameMachine    *RenameMachine    `json:"renameMachine,omitempty"`
	ExecutionRequest *ExecutionRequest `json:"executionRequest,omitempty"`
}

// ApplyMetadata mutates a spec's metadata on the machine that owns the file.
// ExpectedContentHash, when set, is compared against the machine's current
// content hash; a mismatch yields a "conflict" result and no change.
type ApplyMetadata struct {
	ProjectID           string   `json:"projectId"`
	SpecName            string   `json:"specName"`
	Status              string   `json:"status,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	AddDependsOn        []string `json:"addDependsOn,omitempty"`
	RemoveDependsOn     []string `json:"removeDependsOn,omitempty"`
	Parent              *string  `json:"parent,omitempty"`
	ExpectedContentHash string   `json:"expectedContentHash,omitempty"`
}

// RenameMachine sets a new local label on the bridge.
type RenameMachine struct {
	Label string `json:"label"`
}

// ExecutionRequest is an opaque payload delegated outside this subsystem.
// The bridge contract is log-and-acknowledge only.
type ExecutionRequest struct {
	RequestID string `json:"requestId"`
	Payload   string `json:"payload"`
}

// Validate checks that Type is a known variant and that exactly the matching
// payload is present (none for revoke-machine).
func (c Command) Validate() error {
	switch c.Type {
	case CommandApplyMetadata:
		if c.ApplyMetadata == nil {
			return fmt.Errorf("command %s: missing applyMetadata payload", c.Type)
		}
		if c.ApplyMetadata.ProjectID == "" || c.ApplyMetadata.SpecName == "" {
			return fmt.Errorf("command %s: projectId and specName are required", c.Type)
		}
	case CommandRenameMachine:
		if c.RenameMachine == nil || c.RenameMachine.Label == "" {
			return fmt.Errorf("command %s: missing or empty label", c.Type)
		}
	case CommandRevokeMachine:
		// No payload.
	case CommandExecutionRequest:
		if c.ExecutionRequest == nil {
			return fmt.Errorf("command %s: missing executionRequest payload", c.Type)
		}
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
	return nil
}
