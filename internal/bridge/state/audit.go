package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditFileName is the local append-only command log inside the state
// directory.
const AuditFileName = "audit.log"

// AuditLog appends one timestamped line per command the bridge processed.
// Write failures are reported but never block command execution.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog returns a logger writing under stateDir.
func NewAuditLog(stateDir string) *AuditLog {
	return &AuditLog{path: filepath.Join(stateDir, AuditFileName)}
}

// Append writes a single line with an RFC 3339 timestamp prefix.
func (l *AuditLog) Append(format string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	_, err = f.WriteString(line)
	return err
}
