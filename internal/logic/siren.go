package logic

import "time"

// DefaultSirenDuration bounds how long the siren sounds after an opening.
const DefaultSirenDuration = 10 * time.Second

// SirenTimer is a one-shot timer armed by door openings.
// Active means the siren output should be energized.
type SirenTimer struct {
	duration    time.Duration
	active      bool
	startedAt   time.Time
	activations int
}

// NewSirenTimer creates an inactive timer that releases after duration.
func NewSirenTimer(duration time.Duration) *SirenTimer {
	return &SirenTimer{duration: duration}
}

// OnDoorOpen arms the timer. Arming an active timer restarts the window.
func (s *SirenTimer) OnDoorOpen(now time.Time) {
	s.active = true
	s.startedAt = now
	s.activations++
}

// OnDoorClose disarms the timer regardless of elapsed time.
// Returns true if the timer was active.
func (s *SirenTimer) OnDoorClose() bool {
	if !s.active {
		return false
	}
	s.active = false
	return true
}

// Tick disarms the timer once the duration has elapsed since arming.
// Returns true only on the tick that released it.
func (s *SirenTimer) Tick(now time.Time) bool {
	if !s.active || now.Sub(s.startedAt) < s.duration {
		return false
	}
	s.active = false
	return true
}

// Active reports whether the siren should be energized.
func (s *SirenTimer) Active() bool {
	return s.active
}

// StartedAt returns when the timer was last armed.
func (s *SirenTimer) StartedAt() time.Time {
	return s.startedAt
}

// Activations returns how many times the timer has been armed.
func (s *SirenTimer) Activations() int {
	return s.activations
}
