package protocol

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sweeney/door-sentinel/internal/logic"
)

// Signal is the kind of inbound transport notification.
type Signal int

const (
	SignalConnect Signal = iota
	SignalDisconnect
	SignalEvent
)

func (s Signal) String() string {
	switch s {
	case SignalConnect:
		return "connect"
	case SignalDisconnect:
		return "disconnect"
	case SignalEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Inbound is one notification from the transport. Payload is set for
// SignalEvent only.
type Inbound struct {
	Signal  Signal
	Payload []byte
}

// ErrTransportDown is returned by emitters that have no open connection.
var ErrTransportDown = errors.New("transport not connected")

// Emitter is the outbound side of the transport.
type Emitter interface {
	// Handshake acknowledges a new connection.
	Handshake() error
	// Emit sends an encoded event frame.
	Emit(frame []byte) error
}

// ConnState is the router's view of the connection.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// FrameObserver is notified of every frame the router handles.
// direction is "in" or "out".
type FrameObserver func(direction, event string)

// Router handles inbound protocol traffic for one door unit. Frames are
// broadcast to every unit, so status queries for other doors are ignored.
type Router struct {
	doorID   string
	name     string
	emitter  Emitter
	logger   *slog.Logger
	state    ConnState
	observer FrameObserver
}

// NewRouter creates a Disconnected router.
func NewRouter(doorID, name string, emitter Emitter, logger *slog.Logger) *Router {
	return &Router{
		doorID:  doorID,
		name:    name,
		emitter: emitter,
		logger:  logger.With("component", "protocol"),
	}
}

// SetObserver installs a frame observer (used for metrics).
func (r *Router) SetObserver(fn FrameObserver) {
	r.observer = fn
}

// State returns the connection state.
func (r *Router) State() ConnState {
	return r.state
}

// Handle processes one transport notification. door is the current
// debounced door state.
func (r *Router) Handle(in Inbound, door logic.DoorState) {
	switch in.Signal {
	case SignalConnect:
		r.logger.Info("connected")
		r.state = Connected
		if err := r.emitter.Handshake(); err != nil {
			r.logger.Warn("handshake failed", "error", err)
		}
	case SignalDisconnect:
		r.logger.Info("disconnected")
		r.state = Disconnected
	case SignalEvent:
		r.handleEvent(in.Payload, door)
	}
}

func (r *Router) handleEvent(payload []byte, door logic.DoorState) {
	req, err := DecodeRequest(payload)
	if err != nil {
		r.logger.Warn("dropping inbound frame", "error", err, "payload", string(payload))
		r.observe("in", "malformed")
		return
	}
	r.observe("in", req.Kind.String())

	switch req.Kind {
	case RequestDoorStatus:
		if !req.HasDoor {
			r.logger.Debug("status query without door id")
			return
		}
		if req.Door != r.doorID {
			r.logger.Debug("status query for another door", "requested", req.Door)
			return
		}
		r.emit(EventDoorStatus, DoorStatus{Door: r.doorID, Status: door.IsOpen()})
	case RequestConcludeConnection:
		r.emit(EventConcludeConnection, ConcludeConnection{
			Door:   r.doorID,
			Name:   r.name,
			Status: door.IsOpen(),
		})
	case RequestUnrecognized:
		r.logger.Debug("ignoring event", "event", req.Name)
	}
}

// Heartbeat emits a liveness frame keyed by the door id with the uptime in
// milliseconds. Nothing is sent while disconnected.
func (r *Router) Heartbeat(uptime time.Duration) {
	if r.state != Connected {
		r.logger.Debug("heartbeat skipped while disconnected")
		return
	}
	r.emit(EventHeartbeat, map[string]int64{r.doorID: uptime.Milliseconds()})
}

func (r *Router) emit(event string, payload any) {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		r.logger.Error("encode frame", "event", event, "error", err)
		return
	}
	if err := r.emitter.Emit(frame); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrTransportDown) {
			level = slog.LevelDebug
		}
		r.logger.Log(context.Background(), level, "emit failed", "event", event, "error", err)
		return
	}
	r.observe("out", event)
	r.logger.Debug("sent", "event", event)
}

func (r *Router) observe(direction, event string) {
	if r.observer != nil {
		r.observer(direction, event)
	}
}
