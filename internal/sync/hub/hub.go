// Package hub owns the server side of the bridge command channel: one
// long-lived WebSocket per machine, pending-command replay on Hello, live
// pushes on enqueue, and acknowledgement routing back into the registry.
package hub

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"specsync/internal/registry"
	"specsync/internal/registry/domain"
	"specsync/internal/wire"
)

const (
	helloTimeout = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Hub tracks at most one live channel per machine id.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	registry *registry.Registry
}

// New returns a Hub routing acknowledgements into reg.
func New(reg *registry.Registry) *Hub {
	return &Hub{sessions: make(map[string]*session), registry: reg}
}

type session struct {
	machineID string
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

// write sends one frame with a bounded timeout. Serialized per session so
// replayed commands and live pushes never interleave mid-frame.
func (s *session) write(ctx context.Context, f wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, s.conn, f)
}

// ServeWS handles GET /api/sync/bridge/ws. The bridge must send Hello as
// its first frame; the server replies with every currently pending command,
// which is what makes delivery at-least-once across reconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("hub: accept: %v", err)
		return
	}

	ctx := r.Context()
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	var frame wire.Frame
	err = wsjson.Read(helloCtx, conn, &frame)
	cancel()
	if err != nil || frame.Validate() != nil || frame.Type != wire.FrameHello {
		conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return
	}
	hello := frame.Hello

	if err := h.registry.EnsureMachine(ctx, hello.MachineID, hello.MachineLabel); err != nil {
		conn.Close(websocket.StatusInternalError, "registry unavailable")
		return
	}
	_ = h.registry.Touch(ctx, hello.MachineID)

	sess := &session{machineID: hello.MachineID, conn: conn}
	h.register(sess)
	defer h.unregister(sess)
	log.Printf("hub: machine %s connected (label %q, version %q)", hello.MachineID, hello.MachineLabel, hello.Version)

	// Replay the full queue before anything else. An ack for a command the
	// bridge already executed on a previous connection arrives later and
	// dedups server-side.
	for _, pc := range h.registry.PendingCommands(hello.MachineID) {
		pc := pc
		if err := sess.write(ctx, wire.Frame{Type: wire.FramePendingCommand, PendingCommand: &pc}); err != nil {
			log.Printf("hub: replay to %s: %v", hello.MachineID, err)
			conn.Close(websocket.StatusInternalError, "replay failed")
			return
		}
	}

	for {
		var f wire.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				log.Printf("hub: machine %s disconnected", hello.MachineID)
			} else {
				log.Printf("hub: machine %s channel error: %v", hello.MachineID, err)
			}
			return
		}
		if err := f.Validate(); err != nil {
			log.Printf("hub: machine %s sent invalid frame: %v", hello.MachineID, err)
			conn.Close(websocket.StatusPolicyViolation, "invalid frame")
			return
		}
		switch f.Type {
		case wire.FrameHeartbeat:
			_ = h.registry.Touch(ctx, hello.MachineID)
		case wire.FrameCommandResult:
			res := f.CommandResult
			msg := res.Message
			if res.Status == wire.StatusConflict && res.CurrentContentHash != "" {
				msg = "current hash " + res.CurrentContentHash
				if res.Message != "" {
					msg = res.Message + "; " + msg
				}
			}
			if err := h.registry.Acknowledge(ctx, hello.MachineID, res.CommandID, res.Status, msg); err != nil {
				log.Printf("hub: ack %s for %s: %v", res.CommandID, hello.MachineID, err)
			}
		default:
			// Hello twice, or a server→bridge frame: protocol violation.
			conn.Close(websocket.StatusPolicyViolation, "unexpected frame")
			return
		}
	}
}

// TryPush delivers a command on the machine's live channel if one exists.
// Returns false when offline or on write failure; the command stays queued
// and replays on the next Hello either way.
func (h *Hub) TryPush(machineID string, pc domain.PendingCommand) bool {
	h.mu.Lock()
	sess := h.sessions[machineID]
	h.mu.Unlock()
	if sess == nil {
		return false
	}
	if err := sess.write(context.Background(), wire.Frame{Type: wire.FramePendingCommand, PendingCommand: &pc}); err != nil {
		log.Printf("hub: push %s to %s: %v", pc.ID, machineID, err)
		return false
	}
	return true
}

// Connected reports whether a live channel exists for the machine.
func (h *Hub) Connected(machineID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[machineID] != nil
}

// register installs the session, superseding any previous channel for the
// same machine id.
func (h *Hub) register(s *session) {
	h.mu.Lock()
	old := h.sessions[s.machineID]
	h.sessions[s.machineID] = s
	h.mu.Unlock()
	if old != nil {
		old.conn.Close(websocket.StatusPolicyViolation, "superseded by new connection")
	}
}

// unregister removes the session unless it was already superseded.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if h.sessions[s.machineID] == s {
		delete(h.sessions, s.machineID)
	}
	h.mu.Unlock()
	s.conn.Close(websocket.StatusNormalClosure, "")
}
