package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"specsync/internal/bridge/specfile"
	"specsync/internal/bridge/state"
	"specsync/internal/wire"
)

func startWatcher(t *testing.T) (state.ProjectRef, chan state.Item) {
	t.Helper()
	dir := t.TempDir()
	project, err := state.ResolveProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan state.Item, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = New(project, out).Run(ctx)
	}()
	// Give the watcher a moment to install on the specs directory.
	time.Sleep(200 * time.Millisecond)
	return project, out
}

func nextItem(t *testing.T, out chan state.Item, timeout time.Duration) state.Item {
	t.Helper()
	select {
	case item := <-out:
		return item
	case <-time.After(timeout):
		t.Fatal("no event within timeout")
		return state.Item{}
	}
}

func TestWatcher_EmitsSpecChangedOnWrite(t *testing.T) {
	project, out := startWatcher(t)

	specDir := filepath.Join(specfile.SpecsDir(project.Path), "001-auth")
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(specDir, "spec.md"), []byte("# Auth\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	item := nextItem(t, out, 5*time.Second)
	if item.ProjectID != project.ID {
		t.Errorf("projectId = %q, want %q", item.ProjectID, project.ID)
	}
	if item.Event.Type != wire.EventSpecChanged {
		t.Fatalf("event = %s, want spec-changed", item.Event.Type)
	}
	if item.Event.Spec.Name != "001-auth" || item.Event.Spec.Content != "# Auth\n" {
		t.Errorf("spec = %+v, want the written record", item.Event.Spec)
	}
}

func TestWatcher_EmitsSpecDeletedOnRemove(t *testing.T) {
	project, out := startWatcher(t)

	specDir := filepath.Join(specfile.SpecsDir(project.Path), "001-auth")
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(specDir, "spec.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ev := nextItem(t, out, 5*time.Second); ev.Event.Type != wire.EventSpecChanged {
		t.Fatalf("setup event = %s, want spec-changed", ev.Event.Type)
	}

	if err := os.RemoveAll(specDir); err != nil {
		t.Fatal(err)
	}
	item := nextItem(t, out, 5*time.Second)
	if item.Event.Type != wire.EventSpecDeleted || item.Event.SpecName != "001-auth" {
		t.Errorf("event = %+v, want spec-deleted 001-auth", item.Event)
	}
}

func TestWatcher_CoalescesEventBursts(t *testing.T) {
	project, out := startWatcher(t)

	specDir := filepath.Join(specfile.SpecsDir(project.Path), "001-auth")
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(specDir, "spec.md")
	// Several writes in quick succession, as editors produce on save.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("v\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	first := nextItem(t, out, 5*time.Second)
	if first.Event.Type != wire.EventSpecChanged {
		t.Fatalf("event = %s, want spec-changed", first.Event.Type)
	}
	// The burst settles into one read; no flood of further events.
	select {
	case extra := <-out:
		if extra.Event.Type == wire.EventSpecChanged && extra.Event.SpecName == "" {
			// A second event can slip in when the burst straddles the settle
			// window; more than one extra means no coalescing at all.
			if len(out) > 0 {
				t.Errorf("burst produced %d extra events", len(out)+1)
			}
		}
	case <-time.After(time.Second):
	}
}
