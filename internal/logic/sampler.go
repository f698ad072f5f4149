package logic

import "time"

// DefaultDebounce is the minimum time the contact must hold a level before
// it is trusted.
const DefaultDebounce = 50 * time.Millisecond

// Sampler turns raw contact levels into debounced door transitions.
// It keeps only the last observed level, the committed level and the time
// of the last raw change; no sample history is retained.
type Sampler struct {
	window       time.Duration
	lastObserved bool
	stable       bool
	lastChange   time.Time
	counts       EventCounts
}

// NewSampler creates a sampler with the given debounce window. Both levels
// start LOW (door closed) and the debounce clock starts at start.
func NewSampler(window time.Duration, start time.Time) *Sampler {
	return &Sampler{
		window:     window,
		lastChange: start,
	}
}

// Sample feeds one raw reading. It returns a transition and true when the
// level has been stable for longer than the debounce window and differs from
// the committed level.
func (s *Sampler) Sample(r Reading) (Transition, bool) {
	if r.Level != s.lastObserved {
		s.lastChange = r.Time
	}
	s.lastObserved = r.Level

	if r.Time.Sub(s.lastChange) <= s.window || r.Level == s.stable {
		return Transition{}, false
	}

	s.stable = r.Level
	to := StateFromLevel(r.Level)
	if to == DoorOpen {
		s.counts.Opened++
	} else {
		s.counts.Closed++
	}
	return Transition{To: to, Time: r.Time}, true
}

// State returns the committed door state.
func (s *Sampler) State() DoorState {
	return StateFromLevel(s.stable)
}

// Counts returns the number of transitions emitted since startup.
func (s *Sampler) Counts() EventCounts {
	return s.counts
}
