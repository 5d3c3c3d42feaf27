// Package channel maintains the bridge's WebSocket command channel:
// connect, hello, heartbeats, and command dispatch with reconnect.
package channel

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"specsync/internal/bridge/client"
	"specsync/internal/registry/domain"
	"specsync/internal/wire"
)

const (
	heartbeatInterval = 30 * time.Second
	reconnectDelay    = 5 * time.Second
	writeTimeout      = 5 * time.Second
)

// Executor runs one command and returns its acknowledgement.
type Executor interface {
	Execute(ctx context.Context, pc domain.PendingCommand) wire.CommandResult
}

// Runner owns one logical connection, re-dialing with a fixed delay
// whenever it drops. Commands are executed sequentially in arrival
// order; results go back on the same connection.
type Runner struct {
	client     *client.Client
	exec       Executor
	machineID  string
	label      func() string
	version    string
	queueDepth func() int
}

// New returns a channel runner.
func New(c *client.Client, exec Executor, machineID, version string, label func() string, queueDepth func() int) *Runner {
	return &Runner{
		client:     c,
		exec:       exec,
		machineID:  machineID,
		label:      label,
		version:    version,
		queueDepth: queueDepth,
	}
}

// Run dials and serves connections until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	for {
		if err := r.serve(ctx); err != nil && ctx.Err() == nil {
			log.Printf("channel: %v (reconnecting in %s)", err, reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// serve runs one connection to completion.
func (r *Runner) serve(ctx context.Context) error {
	header := http.Header{}
	if name, value, ok := r.client.AuthHeader(); ok {
		header.Set(name, value)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, r.client.WSURL(), &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	connCtx, stop := context.WithCancel(ctx)
	defer stop()

	// One writer at a time: hello, heartbeats, and results share the conn.
	var writeMu sync.Mutex
	write := func(frame wire.Frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, wcancel := context.WithTimeout(connCtx, writeTimeout)
		defer wcancel()
		return wsjson.Write(wctx, conn, frame)
	}

	hello := wire.Frame{Type: wire.FrameHello, Hello: &wire.Hello{
		MachineID:    r.machineID,
		MachineLabel: r.label(),
		Version:      r.version,
	}}
	if err := write(hello); err != nil {
		return err
	}
	log.Printf("channel: connected as %s", r.machineID)

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				beat := wire.Frame{Type: wire.FrameHeartbeat, Heartbeat: &wire.Heartbeat{QueueDepth: r.queueDepth()}}
				if err := write(beat); err != nil {
					stop()
					return
				}
			}
		}
	}()

	for {
		var frame wire.Frame
		if err := wsjson.Read(connCtx, conn, &frame); err != nil {
			return err
		}
		if err := frame.Validate(); err != nil {
			log.Printf("channel: dropping frame: %v", err)
			continue
		}
		if frame.Type != wire.FramePendingCommand {
			continue
		}
		res := r.exec.Execute(connCtx, *frame.PendingCommand)
		ack := wire.Frame{Type: wire.FrameCommandResult, CommandResult: &res}
		if err := write(ack); err != nil {
			return err
		}
	}
}
