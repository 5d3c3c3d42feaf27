package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"specsync/internal/audit/domain"
	auditrepo "specsync/internal/audit/repository"
)

type captureEmitter struct {
	mu      sync.Mutex
	entries []*domain.Entry
}

func (c *captureEmitter) Emit(_ context.Context, e *domain.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureEmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestRecorder_Record_AppendsAndEmits(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	emitter := &captureEmitter{}
	rec := NewRecorder(repo, emitter)

	rec.Record(context.Background(), "m1", "p1", "auth", "apply-metadata", "ok", "")

	entries, err := repo.ListByMachine(context.Background(), "m1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "apply-metadata" || e.Outcome != "ok" || e.ProjectID != "p1" {
		t.Errorf("entry = %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("entry missing id or timestamp")
	}

	// Emitters run async.
	deadline := time.Now().Add(2 * time.Second)
	for emitter.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if emitter.count() != 1 {
		t.Errorf("emitted = %d, want 1", emitter.count())
	}
}

func TestRecorder_NilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	// Must not panic; audit is always best-effort.
	rec.Record(context.Background(), "m1", "", "", "enqueued", "ok", "")
}

func TestMemoryRepository_ListNewestFirstWithPaging(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	ctx := context.Background()
	for i, action := range []string{"first", "second", "third"} {
		e := &domain.Entry{
			ID:        string(rune('a' + i)),
			MachineID: "m1",
			Action:    action,
			CreatedAt: time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC),
		}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	page, err := repo.ListByMachine(ctx, "m1", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Action != "third" || page[1].Action != "second" {
		t.Errorf("page = %+v, want newest first", page)
	}
	rest, err := repo.ListByMachine(ctx, "m1", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].Action != "first" {
		t.Errorf("rest = %+v, want the oldest entry", rest)
	}

	other, err := repo.ListByMachine(ctx, "other", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("entries for other machine = %d, want 0", len(other))
	}
}
