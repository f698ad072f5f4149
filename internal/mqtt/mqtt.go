// Package mqtt mirrors door events and lifecycle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/door-sentinel/internal/logic"
)

// TopicPrefix is the root of every topic published by this unit.
const TopicPrefix = "door-sentinel"

// Lifecycle event names carried on the system topic.
const (
	EventStartup   = "STARTUP"
	EventShutdown  = "SHUTDOWN"
	EventHeartbeat = "HEARTBEAT"
	EventOffline   = "OFFLINE"
)

// EventsTopic returns the door event topic for a door id.
func EventsTopic(doorID string) string {
	return TopicPrefix + "/" + doorID + "/events"
}

// SystemTopic returns the lifecycle topic for a door id.
func SystemTopic(doorID string) string {
	return TopicPrefix + "/" + doorID + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event DoorEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// DoorEvent is one debounced door transition.
type DoorEvent struct {
	Timestamp   time.Time
	DoorID      string
	Name        string
	State       logic.DoorState
	OfflineMode bool // ingest endpoint was unreachable when the transition happened
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted status snapshot; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the door event message body.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door event details.
type DoorPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Event       string `json:"event"`
	Open        bool   `json:"open"`
	OfflineMode bool   `json:"offline_mode"`
	Timestamp   string `json:"timestamp"`
}

// FormatPayload creates the JSON payload for a door event.
func FormatPayload(event DoorEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Door: DoorPayload{
			ID:          event.DoorID,
			Name:        event.Name,
			Event:       string(event.State),
			Open:        event.State.IsOpen(),
			OfflineMode: event.OfflineMode,
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		},
	})
}

// SystemPayload is the body for lifecycle events that carry no status
// snapshot (the last-will message).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// NopPublisher drops everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(DoorEvent) error         { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
