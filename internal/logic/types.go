// Package logic contains pure business logic for door state tracking.
// This package has NO external dependencies (no GPIO, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// DoorState represents the debounced logical state of the door.
type DoorState string

const (
	DoorClosed DoorState = "CLOSED"
	DoorOpen   DoorState = "OPEN"
)

// IsOpen reports whether the state is DoorOpen.
func (s DoorState) IsOpen() bool {
	return s == DoorOpen
}

// StateFromLevel maps a contact level to a door state (HIGH = open).
func StateFromLevel(high bool) DoorState {
	if high {
		return DoorOpen
	}
	return DoorClosed
}

// Reading is a single raw sample of the contact sensor.
type Reading struct {
	Level bool // true = HIGH (door open)
	Time  time.Time
}

// Transition is a debounced change of door state.
type Transition struct {
	To   DoorState
	Time time.Time
}

// PendingEvent is an opening recorded while the ingest endpoint was unreachable.
type PendingEvent struct {
	Timestamp string // wall-clock time, see FormatTimestamp
	DoorID    string
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	Opened int
	Closed int
}

// FormatTimestamp renders t as D/M/YYYY H:M:S without zero padding,
// which is the format the ingest server parses for offline openings.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d %d:%d:%d",
		t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), t.Second())
}
