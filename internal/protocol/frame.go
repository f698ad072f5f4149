// Package protocol implements the door side of the real-time event protocol:
// decoding inbound frames into typed requests and encoding replies.
//
// A frame is a JSON array [eventName, payload?].
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event names on the wire.
const (
	EventGetDoorStatus           = "get_door_status"
	EventStartConcludeConnection = "start_conclude_connection"
	EventDoorStatus              = "door_status"
	EventConcludeConnection      = "conclude_connection"
	EventHeartbeat               = "heartbeat"
)

// ErrMalformedFrame is returned for payloads that are not a tagged array.
var ErrMalformedFrame = errors.New("malformed frame")

// RequestKind is the closed set of inbound requests.
type RequestKind int

const (
	RequestUnrecognized RequestKind = iota
	RequestDoorStatus
	RequestConcludeConnection
)

func (k RequestKind) String() string {
	switch k {
	case RequestDoorStatus:
		return EventGetDoorStatus
	case RequestConcludeConnection:
		return EventStartConcludeConnection
	default:
		return "unrecognized"
	}
}

// Request is a decoded inbound event.
type Request struct {
	Kind RequestKind
	Name string // event name as received

	// Door is data.door of a status query; HasDoor is false when the field
	// is missing or not a string.
	Door    string
	HasDoor bool
}

type doorField struct {
	Door *string `json:"door"`
}

// DecodeRequest parses an event payload. Unknown event names decode to
// RequestUnrecognized without error.
func DecodeRequest(payload []byte) (Request, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(arr) < 1 {
		return Request{}, fmt.Errorf("%w: empty array", ErrMalformedFrame)
	}

	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		return Request{}, fmt.Errorf("%w: event name is not a string", ErrMalformedFrame)
	}

	req := Request{Name: name}
	switch name {
	case EventGetDoorStatus:
		req.Kind = RequestDoorStatus
		if len(arr) > 1 {
			req.Door, req.HasDoor = decodeDoor(arr[1])
		}
	case EventStartConcludeConnection:
		req.Kind = RequestConcludeConnection
	default:
		req.Kind = RequestUnrecognized
	}
	return req, nil
}

func decodeDoor(data json.RawMessage) (string, bool) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return "", false
	}
	var f doorField
	if err := json.Unmarshal(data, &f); err != nil || f.Door == nil {
		return "", false
	}
	return *f.Door, true
}

// DoorStatus is the payload of a door_status reply.
type DoorStatus struct {
	Door   string `json:"door"`
	Status bool   `json:"status"`
}

// ConcludeConnection is the payload of a conclude_connection reply.
type ConcludeConnection struct {
	Door   string `json:"door"`
	Name   string `json:"name"`
	Status bool   `json:"status"`
}

// EncodeFrame renders [name, payload].
func EncodeFrame(name string, payload any) ([]byte, error) {
	data, err := json.Marshal([]any{name, payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", name, err)
	}
	return data, nil
}
