// Package blink turns a per-frame "both eyes closed" signal into discrete
// blink events.
//
// The detector has two states. Open is the resting state; the first closed
// frame moves it to Closing and every further closed frame extends the run.
// The first open frame after a run ends it: runs of at least MinFrames commit
// one blink stamped with that open frame's time, shorter runs are dropped as
// landmark noise.
package blink

import "github.com/blinkwatch/blinkwatch/internal/geometry"

// DefaultMinFrames is the shortest closed run accepted as a blink.
const DefaultMinFrames = 3

// State is the detector state.
type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
)

// Event is a committed blink.
type Event struct {
	TimestampMs int64 `json:"timestamp_ms"`
	Frames      int   `json:"frames"` // closed run length
}

// Detector is the blink state machine. It is not safe for concurrent use.
type Detector struct {
	minFrames int
	run       int
}

// NewDetector returns a Detector in the Open state.
// minFrames below 1 is treated as 1.
func NewDetector(minFrames int) *Detector {
	if minFrames < 1 {
		minFrames = 1
	}
	return &Detector{minFrames: minFrames}
}

// BothClosed reports whether both eyes are strictly below threshold.
// A non-finite EAR on either side counts as open.
func BothClosed(leftEar, rightEar, threshold float64) bool {
	return geometry.Below(leftEar, threshold) && geometry.Below(rightEar, threshold)
}

// Step advances the machine by one frame. It returns the committed event and
// true when this frame ends a run long enough to count.
func (d *Detector) Step(closed bool, tsMs int64) (Event, bool) {
	if closed {
		d.run++
		return Event{}, false
	}
	run := d.run
	d.run = 0
	if run >= d.minFrames {
		return Event{TimestampMs: tsMs, Frames: run}, true
	}
	return Event{}, false
}

// State returns the current state.
func (d *Detector) State() State {
	if d.run > 0 {
		return StateClosing
	}
	return StateOpen
}

// Run returns the length of the in-progress closed run (0 when Open).
func (d *Detector) Run() int { return d.run }

// Reset returns the detector to Open, discarding any in-progress run.
func (d *Detector) Reset() { d.run = 0 }
