// Package status provides a thread-safe status tracker for the door-sentinel
// daemon. The control loop writes it; HTTP handlers and MQTT lifecycle
// events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-sentinel/internal/logic"
)

// NetworkInfo contains network state as exported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DoorID      string
	DoorName    string
	PollMs      int64
	DebounceMs  int64
	SirenMs     int64
	HeartbeatMs int64
	IngestURL   string
	SocketURL   string
	Broker      string
	HTTPAddr    string
}

// Door is the part of the snapshot owned by the monitor.
type Door struct {
	State            logic.DoorState
	SirenActive      bool
	SirenActivations int
	Online           bool
	BufferDepth      int
	BufferOverflowed bool
	Counts           logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door            Door
	SocketConnected bool
	MQTTConnected   bool
	StartTime       time.Time
	Now             time.Time
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the monitor-owned door state. Called after every tick.
func (t *Tracker) Update(d Door) {
	t.mu.Lock()
	t.snap.Door = d
	t.mu.Unlock()
}

// SetSocketConnected sets the event-protocol connection status.
func (t *Tracker) SetSocketConnected(connected bool) {
	t.mu.Lock()
	t.snap.SocketConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
