// Package arbiter decides, frame by frame, whether a low-blink-rate alert
// should fire.
//
// An alert fires only when every gate passes: the rate is below the
// threshold, the session is old enough, enough recent blinks back the rate,
// no earlier alert is still awaiting dismissal, and the cooldown since the
// previous alert has elapsed. Once fired the arbiter stays active until
// Dismiss is called.
package arbiter

import (
	"fmt"
	"time"
)

// Threshold bounds for the operator-adjustable low-rate threshold.
const (
	MinLowBlinkThreshold = 5.0
	MaxLowBlinkThreshold = 25.0
)

// Defaults shared by both deployment profiles.
const (
	DefaultLowBlinkThreshold = 10.0
	DefaultMinBlinksForAlert = 3
)

// Config holds the arbitration parameters.
type Config struct {
	LowBlinkThreshold float64       // blinks/min; clamped to [5, 25]
	Cooldown          time.Duration // minimum gap between two firings
	MinSessionTime    time.Duration // session age required before any alert
	MinBlinksForAlert int           // recent blinks required to trust the rate
}

// Validate rejects out-of-range values. LowBlinkThreshold is not checked
// because it is clamped instead.
func (c Config) Validate() error {
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	if c.MinSessionTime < 0 {
		return fmt.Errorf("min session time must not be negative")
	}
	if c.MinBlinksForAlert < 0 {
		return fmt.Errorf("min blinks for alert must not be negative")
	}
	return nil
}

// Decision is the result of one evaluation.
type Decision struct {
	Fire bool    `json:"fire"`
	Rate float64 `json:"rate,omitempty"`
}

// Arbiter holds alert state. It is not safe for concurrent use.
type Arbiter struct {
	cfg         Config
	active      bool
	fired       bool
	lastAlertMs int64
}

// New returns an Arbiter. cfg.LowBlinkThreshold is clamped.
func New(cfg Config) *Arbiter {
	cfg.LowBlinkThreshold = ClampThreshold(cfg.LowBlinkThreshold)
	return &Arbiter{cfg: cfg}
}

// ClampThreshold restricts v to [MinLowBlinkThreshold, MaxLowBlinkThreshold].
func ClampThreshold(v float64) float64 {
	if v < MinLowBlinkThreshold {
		return MinLowBlinkThreshold
	}
	if v > MaxLowBlinkThreshold {
		return MaxLowBlinkThreshold
	}
	return v
}

// Config returns the active configuration.
func (a *Arbiter) Config() Config { return a.cfg }

// SetLowBlinkThreshold clamps v, applies it and returns the applied value.
func (a *Arbiter) SetLowBlinkThreshold(v float64) float64 {
	a.cfg.LowBlinkThreshold = ClampThreshold(v)
	return a.cfg.LowBlinkThreshold
}

// LowRate reports whether the rate is low enough, and backed by enough data,
// to be shown as a warning. It ignores cooldown and the active flag.
func (a *Arbiter) LowRate(rate float64, sessionDurationMs int64, recentBlinks int) bool {
	return rate < a.cfg.LowBlinkThreshold &&
		sessionDurationMs >= a.cfg.MinSessionTime.Milliseconds() &&
		recentBlinks >= a.cfg.MinBlinksForAlert
}

// Evaluate applies every gate at nowMs and fires at most once per cooldown.
func (a *Arbiter) Evaluate(nowMs int64, rate float64, sessionDurationMs int64, recentBlinks int) Decision {
	if a.active || !a.LowRate(rate, sessionDurationMs, recentBlinks) {
		return Decision{}
	}
	if a.fired && nowMs-a.lastAlertMs <= a.cfg.Cooldown.Milliseconds() {
		return Decision{}
	}
	a.active = true
	a.fired = true
	a.lastAlertMs = nowMs
	return Decision{Fire: true, Rate: rate}
}

// Active reports whether a fired alert is awaiting dismissal.
func (a *Arbiter) Active() bool { return a.active }

// LastAlert returns the time of the most recent firing, if any.
func (a *Arbiter) LastAlert() (int64, bool) { return a.lastAlertMs, a.fired }

// Dismiss clears the active flag. The cooldown keeps running from the last
// firing.
func (a *Arbiter) Dismiss() { a.active = false }
