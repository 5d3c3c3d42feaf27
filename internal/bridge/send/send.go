// Package send delivers outbound events, falling back to the persistent
// queue when the server is unreachable and draining it oldest-first once
// delivery works again.
package send

import (
	"context"
	"log"
	"time"

	"specsync/internal/bridge/client"
	"specsync/internal/bridge/state"
	"specsync/internal/wire"
)

// retryInterval is how often a non-empty queue is retried when no new
// events arrive to trigger a drain.
const retryInterval = 15 * time.Second

// Sender owns the queue: it is the only task that appends or pops.
type Sender struct {
	client    *client.Client
	queue     *state.Queue
	machineID string
	// label is read per delivery so a rename applied mid-run is not
	// undone by the next batch.
	label func() string
}

// New returns a sender delivering on behalf of the given machine.
func New(c *client.Client, q *state.Queue, machineID string, label func() string) *Sender {
	return &Sender{client: c, queue: q, machineID: machineID, label: label}
}

// Run consumes items until ctx is done. Ordering is preserved: while a
// backlog exists, new items go behind it rather than ahead of it.
func (s *Sender) Run(ctx context.Context, in <-chan state.Item) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-in:
			s.handle(ctx, item)
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Sender) handle(ctx context.Context, item state.Item) {
	if s.queue.Len() > 0 {
		if err := s.queue.Append(item); err != nil {
			log.Printf("send: queue %s event for %s: %v", item.Event.Type, item.ProjectName, err)
			return
		}
		s.drain(ctx)
		return
	}
	if err := s.deliver(ctx, item); err != nil {
		log.Printf("send: deliver %s event for %s: %v (queued)", item.Event.Type, item.ProjectName, err)
		if qErr := s.queue.Append(item); qErr != nil {
			log.Printf("send: queue event: %v", qErr)
		}
	}
}

// drain sends queued items oldest-first, stopping at the first failure.
func (s *Sender) drain(ctx context.Context) {
	for {
		item, ok := s.queue.Peek()
		if !ok {
			return
		}
		if err := s.deliver(ctx, item); err != nil {
			return
		}
		if err := s.queue.Pop(); err != nil {
			log.Printf("send: pop queue: %v", err)
			return
		}
	}
}

func (s *Sender) deliver(ctx context.Context, item state.Item) error {
	return s.client.PostEvents(ctx, wire.EventsRequest{
		MachineID:    s.machineID,
		MachineLabel: s.label(),
		ProjectID:    item.ProjectID,
		ProjectName:  item.ProjectName,
		Events:       []wire.Event{item.Event},
	})
}
