// Package state owns the bridge's on-disk state: the identity/config file,
// the offline event queue, and project resolution. Each file is touched by
// exactly one owning task; concurrent bridge instances sharing a state
// directory are unsupported.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ConfigFileName is the identity/config file inside the state directory.
const ConfigFileName = "bridge.json"

// Config is the bridge's persisted identity and settings. MachineID is
// generated once and never changes; the label and token are the only
// fields server-pushed commands may touch.
type Config struct {
	ServerURL    string   `json:"serverUrl"`
	APIKey       string   `json:"apiKey,omitempty"`
	AccessToken  string   `json:"accessToken,omitempty"`
	MachineID    string   `json:"machineId"`
	MachineLabel string   `json:"machineLabel"`
	Projects     []string `json:"projects"`
}

// Handle wraps the config file: an immutable-by-convention snapshot for
// readers plus narrow setters for the fields commands can change. Every
// setter persists before returning.
type Handle struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// LoadHandle reads the config file, or starts empty when it does not exist.
func LoadHandle(stateDir string) (*Handle, error) {
	path := filepath.Join(stateDir, ConfigFileName)
	h := &Handle{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(raw, &h.cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return h, nil
}

// Snapshot returns a copy of the current config.
func (h *Handle) Snapshot() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	cfg := h.cfg
	cfg.Projects = append([]string(nil), h.cfg.Projects...)
	return cfg
}

// Update applies fn to the config under the lock and persists the result.
// Used at startup to merge CLI flags and mint the identity.
func (h *Handle) Update(fn func(*Config)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.cfg)
	return h.save()
}

// EnsureIdentity mints the machine id on first run and defaults the label
// to the hostname. Idempotent.
func (h *Handle) EnsureIdentity(label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := false
	if h.cfg.MachineID == "" {
		h.cfg.MachineID = uuid.New().String()
		changed = true
	}
	if label != "" && label != h.cfg.MachineLabel {
		h.cfg.MachineLabel = label
		changed = true
	}
	if h.cfg.MachineLabel == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "bridge"
		}
		h.cfg.MachineLabel = hostname
		changed = true
	}
	if !changed {
		return nil
	}
	return h.save()
}

// SetLabel persists a new machine label (RenameMachine).
func (h *Handle) SetLabel(label string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.MachineLabel = label
	return h.save()
}

// SetToken persists a newly issued access token.
func (h *Handle) SetToken(token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.AccessToken = token
	return h.save()
}

// ClearToken drops the stored token (RevokeMachine), forcing re-auth on
// the next startup.
func (h *Handle) ClearToken() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.AccessToken = ""
	return h.save()
}

// save writes the config atomically with owner-only permissions. Caller
// holds h.mu.
func (h *Handle) save() error {
	raw, err := json.MarshalIndent(h.cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(h.path, raw, 0o600)
}

// ProjectRef is one resolved project directory.
type ProjectRef struct {
	ID   string
	Name string
	Path string
}

// ResolveProject turns a configured project path into an absolute,
// verified reference. The project id is derived from the absolute path so
// it is stable across restarts without another identity file.
func ResolveProject(path string) (ProjectRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ProjectRef{}, fmt.Errorf("project %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return ProjectRef{}, fmt.Errorf("project %s: %w", abs, err)
	}
	if !info.IsDir() {
		return ProjectRef{}, fmt.Errorf("project %s: not a directory", abs)
	}
	sum := sha256.Sum256([]byte(abs))
	return ProjectRef{
		ID:   hex.EncodeToString(sum[:])[:12],
		Name: filepath.Base(abs),
		Path: abs,
	}, nil
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a torn file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
