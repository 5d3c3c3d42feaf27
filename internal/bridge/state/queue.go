package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"specsync/internal/wire"
)

// QueueFileName is the offline event queue file inside the state directory.
const QueueFileName = "queue.json"

// Item is one queued outbound event together with the project it belongs
// to, so a drained batch can be rebuilt long after the watcher saw it.
type Item struct {
	ProjectID   string     `json:"projectId"`
	ProjectName string     `json:"projectName"`
	Event       wire.Event `json:"event"`
}

// Queue is the persistent FIFO of events that could not be delivered.
// Only the sender task mutates it; Len is safe from any goroutine.
type Queue struct {
	path  string
	items []Item
	depth atomic.Int64
}

// OpenQueue loads the queue file, or starts empty when it does not exist.
func OpenQueue(stateDir string) (*Queue, error) {
	path := filepath.Join(stateDir, QueueFileName)
	q := &Queue{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &q.items); err != nil {
			return nil, fmt.Errorf("parse queue %s: %w", path, err)
		}
	}
	q.depth.Store(int64(len(q.items)))
	return q, nil
}

// Append adds an item to the tail and persists.
func (q *Queue) Append(item Item) error {
	q.items = append(q.items, item)
	if err := q.save(); err != nil {
		q.items = q.items[:len(q.items)-1]
		return err
	}
	q.depth.Store(int64(len(q.items)))
	return nil
}

// Peek returns the oldest item without removing it.
func (q *Queue) Peek() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Pop removes the oldest item and persists. An item is only popped after
// the server acknowledged it, so a crash re-sends rather than drops.
func (q *Queue) Pop() error {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	if err := q.save(); err != nil {
		q.items = append([]Item{head}, q.items...)
		return err
	}
	q.depth.Store(int64(len(q.items)))
	return nil
}

// Len reports the number of queued items. Safe for concurrent readers.
func (q *Queue) Len() int {
	return int(q.depth.Load())
}

func (q *Queue) save() error {
	raw, err := json.Marshal(q.items)
	if err != nil {
		return err
	}
	return writeFileAtomic(q.path, raw, 0o600)
}
