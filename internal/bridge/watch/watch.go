// Package watch turns filesystem activity under a project's specs
// directory into sync events.
package watch

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"specsync/internal/bridge/specfile"
	"specsync/internal/bridge/state"
	"specsync/internal/wire"
)

// settle is how long a spec name must stay quiet before it is re-read.
// Editors fire several events per save; one read per burst is enough.
const settle = 300 * time.Millisecond

// Watcher emits spec-changed and spec-deleted events for one project.
type Watcher struct {
	project state.ProjectRef
	out     chan<- state.Item
}

// New returns a watcher for the project, emitting into out.
func New(project state.ProjectRef, out chan<- state.Item) *Watcher {
	return &Watcher{project: project, out: out}
}

// Run watches until ctx is done. The specs directory and every spec
// subdirectory are watched; directories created later are added as they
// appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	specsDir := specfile.SpecsDir(w.project.Path)
	if err := os.MkdirAll(specsDir, 0o755); err != nil {
		return err
	}
	if err := w.addRecursive(fw, specsDir); err != nil {
		return err
	}

	// Per-spec settle timers. A timer firing means the burst for that
	// spec ended and it is safe to read.
	timers := make(map[string]*time.Timer)
	pending := make(chan string, 64)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name := <-pending:
			delete(timers, name)
			w.emit(ctx, name, specsDir)
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.addRecursive(fw, ev.Name); addErr != nil {
						log.Printf("watch %s: add %s: %v", w.project.Name, ev.Name, addErr)
					}
				}
			}
			name, ok := specfile.SpecNameForPath(specsDir, ev.Name)
			if !ok {
				continue
			}
			if t, exists := timers[name]; exists {
				t.Reset(settle)
				continue
			}
			n := name
			timers[name] = time.AfterFunc(settle, func() {
				select {
				case pending <- n:
				case <-ctx.Done():
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			log.Printf("watch %s: %v", w.project.Name, err)
		}
	}
}

// emit re-reads the spec and sends the matching event. A spec that no
// longer loads is reported as deleted.
func (w *Watcher) emit(ctx context.Context, name, specsDir string) {
	var event wire.Event
	rec, err := specfile.LoadRecord(w.project.Path, name)
	switch {
	case err == nil:
		event = wire.Event{Type: wire.EventSpecChanged, Spec: &rec}
	case errors.Is(err, specfile.ErrNotFound):
		event = wire.Event{Type: wire.EventSpecDeleted, SpecName: name}
	default:
		log.Printf("watch %s: read spec %s: %v", w.project.Name, name, err)
		return
	}
	item := state.Item{ProjectID: w.project.ID, ProjectName: w.project.Name, Event: event}
	select {
	case w.out <- item:
	case <-ctx.Done():
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fw.Add(path)
	})
}
