// Package audit records every command issued and result received. Appends
// are best-effort from the caller's point of view: failures are logged and
// never propagate into the command path.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"specsync/internal/audit/domain"
	auditrepo "specsync/internal/audit/repository"
)

// emitTimeout bounds a single async emit to a downstream sink.
const emitTimeout = 5 * time.Second

// Emitter streams audit entries to an external sink (Kafka, OTel logs).
type Emitter interface {
	Emit(ctx context.Context, e *domain.Entry) error
}

// Recorder appends audit entries to the repository and fans them out to any
// configured emitters asynchronously.
type Recorder struct {
	repo     auditrepo.Repository
	emitters []Emitter
	nowF     func() time.Time
}

// NewRecorder returns a Recorder writing to repo. emitters may be empty.
func NewRecorder(repo auditrepo.Repository, emitters ...Emitter) *Recorder {
	return &Recorder{repo: repo, emitters: emitters, nowF: func() time.Time { return time.Now().UTC() }}
}

// Record appends one audit entry. Best-effort: errors are logged, not
// returned. Emitters run in goroutines with a short timeout so the caller
// is never blocked on a slow sink.
func (r *Recorder) Record(ctx context.Context, machineID, projectID, specName, action, outcome, message string) {
	if r == nil {
		return
	}
	e := &domain.Entry{
		ID:        uuid.New().String(),
		MachineID: machineID,
		ProjectID: projectID,
		SpecName:  specName,
		Action:    action,
		Outcome:   outcome,
		Message:   message,
		CreatedAt: r.nowF(),
	}
	if r.repo != nil {
		if err := r.repo.Append(ctx, e); err != nil {
			log.Printf("audit: append %s/%s failed: %v", action, machineID, err)
		}
	}
	for _, em := range r.emitters {
		em := em
		go func() {
			emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
			defer cancel()
			if err := em.Emit(emitCtx, e); err != nil {
				log.Printf("audit: async emit failed: %v", err)
			}
		}()
	}
}
