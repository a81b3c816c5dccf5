// Package rate estimates blinks per minute over a trailing time window.
package rate

import "time"

// DefaultWindow is the trailing window blinks are counted over.
const DefaultWindow = 4 * time.Minute

// minElapsedMinutes floors the divisor at one second.
const minElapsedMinutes = 1.0 / 60

// Estimator keeps committed blink timestamps (ms) and derives a rate from
// them. When a session start is known, the divisor grows with the session up
// to the window length, so the rate ramps in smoothly instead of spiking in
// the first seconds.
//
// Estimator is not safe for concurrent use.
type Estimator struct {
	windowMs int64
	stamps   []int64 // ascending
	startMs  int64
	hasStart bool
}

// NewEstimator returns an Estimator with the given window.
// A non-positive window falls back to DefaultWindow.
func NewEstimator(window time.Duration) *Estimator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Estimator{windowMs: window.Milliseconds()}
}

// SetStart records the session start time.
func (e *Estimator) SetStart(ms int64) {
	e.startMs = ms
	e.hasStart = true
}

// ClearStart forgets the session start; CurrentRate then measures from the
// oldest recent blink instead.
func (e *Estimator) ClearStart() {
	e.startMs = 0
	e.hasStart = false
}

// Start returns the session start and whether one is set.
func (e *Estimator) Start() (int64, bool) {
	return e.startMs, e.hasStart
}

// OnBlinkCommitted appends tsMs and prunes timestamps that fell out of the
// window ending at tsMs.
func (e *Estimator) OnBlinkCommitted(tsMs int64) {
	e.stamps = append(e.stamps, tsMs)
	e.prune(tsMs - e.windowMs)
}

// CurrentRate returns blinks per minute at nowMs. It does not modify state.
func (e *Estimator) CurrentRate(nowMs int64) float64 {
	cutoff := nowMs - e.windowMs
	first := e.firstAtOrAfter(cutoff)
	n := len(e.stamps) - first
	if n <= 0 {
		return 0
	}

	var elapsed int64
	if e.hasStart {
		elapsed = nowMs - e.startMs
	} else {
		elapsed = nowMs - e.stamps[first]
	}
	if elapsed > e.windowMs {
		elapsed = e.windowMs
	}

	minutes := float64(elapsed) / 60000
	if minutes < minElapsedMinutes {
		minutes = minElapsedMinutes
	}
	return float64(n) / minutes
}

// RecentCount returns how many stored blinks fall inside the window at nowMs.
func (e *Estimator) RecentCount(nowMs int64) int {
	return len(e.stamps) - e.firstAtOrAfter(nowMs-e.windowMs)
}

// Timestamps returns a copy of the stored timestamps, oldest first.
func (e *Estimator) Timestamps() []int64 {
	out := make([]int64, len(e.stamps))
	copy(out, e.stamps)
	return out
}

// Clear drops every stored timestamp.
func (e *Estimator) Clear() {
	e.stamps = e.stamps[:0]
}

func (e *Estimator) prune(cutoff int64) {
	if i := e.firstAtOrAfter(cutoff); i > 0 {
		e.stamps = append(e.stamps[:0], e.stamps[i:]...)
	}
}

// firstAtOrAfter returns the index of the first timestamp >= cutoff.
func (e *Estimator) firstAtOrAfter(cutoff int64) int {
	for i, ts := range e.stamps {
		if ts >= cutoff {
			return i
		}
	}
	return len(e.stamps)
}
