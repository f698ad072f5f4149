package logic

import "time"

// DefaultHeartbeatInterval is how often a liveness frame is emitted.
const DefaultHeartbeatInterval = 5 * time.Second

// Heartbeat schedules periodic liveness frames independent of door state.
type Heartbeat struct {
	interval  time.Duration
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a schedule whose first beat is due one interval
// after start. An interval <= 0 disables it.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{
		interval:  interval,
		startTime: start,
		last:      start,
	}
}

// Due returns the uptime and true if the interval has elapsed since the
// last beat, recording now as the new last beat.
func (h *Heartbeat) Due(now time.Time) (time.Duration, bool) {
	if h.interval <= 0 {
		return 0, false
	}
	if now.Sub(h.last) < h.interval {
		return 0, false
	}
	h.last = now
	return now.Sub(h.startTime), true
}
