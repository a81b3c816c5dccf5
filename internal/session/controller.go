package session

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/blinkwatch/blinkwatch/internal/arbiter"
	"github.com/blinkwatch/blinkwatch/internal/blink"
	"github.com/blinkwatch/blinkwatch/internal/calibration"
	"github.com/blinkwatch/blinkwatch/internal/geometry"
	"github.com/blinkwatch/blinkwatch/internal/rate"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// ResetKind selects what Reset clears.
type ResetKind string

const (
	ResetCalibration ResetKind = "calibration"
	ResetSession     ResetKind = "session"
)

// Outcome is the result of processing one frame.
type Outcome struct {
	SessionID   string `json:"session_id"`
	TimestampMs int64  `json:"timestamp_ms"`

	// Per-eye EAR. Either may be NaN or +Inf for a degenerate sample.
	LeftEAR  float64 `json:"left_ear"`
	RightEAR float64 `json:"right_ear"`

	Calibration calibration.Status `json:"calibration"`
	Threshold   float64            `json:"threshold"` // 0 until calibrated
	BlinkState  blink.State        `json:"blink_state"`

	BlinkCommitted bool         `json:"blink_committed"`
	Blink          *blink.Event `json:"blink,omitempty"`
	TotalBlinks    int          `json:"total_blinks"`

	Rate              float64 `json:"rate"` // blinks per minute
	RecentBlinks      int     `json:"recent_blinks"`
	SessionDurationMs int64   `json:"session_duration_ms"`

	LowRate     bool             `json:"low_rate"`
	Alert       arbiter.Decision `json:"alert"`
	AlertActive bool             `json:"alert_active"`
}

// Summary is a point-in-time view of the controller state.
type Summary struct {
	SessionID         string
	TotalBlinks       int
	Rate              float64
	RecentBlinks      int
	Calibration       calibration.Status
	Threshold         float64
	LowBlinkThreshold float64
	SessionDurationMs int64
	AlertActive       bool
	LastTimestampMs   int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for calibration, blink and alert events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithIDFunc replaces the session ID generator.
func WithIDFunc(f func() string) Option {
	return func(c *Controller) {
		if f != nil {
			c.newID = f
		}
	}
}

// Controller owns all per-session state.
type Controller struct {
	cfg   Config
	calib *calibration.Calibrator
	det   *blink.Detector
	rate  *rate.Estimator
	arb   *arbiter.Arbiter
	log   *slog.Logger
	newID func() string

	sessionID   string
	totalBlinks int
	lastTs      int64
	seen        bool
}

// New validates cfg and returns a Controller ready for its first frame.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	c := &Controller{
		cfg:   cfg,
		calib: calibration.New(cfg.BaselineFrames),
		det:   blink.NewDetector(cfg.MinBlinkFrames),
		rate:  rate.NewEstimator(cfg.RollingWindow),
		arb:   arbiter.New(cfg.Alerts),
		log:   slog.Default(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sessionID = c.newID()
	return c, nil
}

// ProcessFrame runs one frame through the pipeline.
func (c *Controller) ProcessFrame(in types.FrameInput) Outcome {
	now := in.TimestampMs
	// The session clock starts on the first frame after New or a reset.
	startMs, ok := c.rate.Start()
	if !ok {
		startMs = now
		c.rate.SetStart(now)
	}
	c.lastTs = now
	c.seen = true

	left := geometry.EAR(in.LeftEye)
	right := geometry.EAR(in.RightEye)

	out := Outcome{
		SessionID:   c.sessionID,
		TimestampMs: now,
		LeftEAR:     left,
		RightEAR:    right,
	}

	if baseline, ok := c.calib.Baseline(); !ok {
		st := c.calib.Observe((left + right) / 2)
		if st.Complete() {
			c.log.Info("calibration complete",
				"baseline", st.Baseline,
				"threshold", st.Baseline*c.cfg.EARThresholdRatio,
				"frames", st.Target,
			)
		}
	} else {
		closed := blink.BothClosed(left, right, baseline*c.cfg.EARThresholdRatio)
		if ev, ok := c.det.Step(closed, now); ok {
			c.totalBlinks++
			c.rate.OnBlinkCommitted(ev.TimestampMs)
			out.BlinkCommitted = true
			out.Blink = &ev
			c.log.Debug("blink committed",
				"total", c.totalBlinks,
				"frames", ev.Frames,
				"ts", ev.TimestampMs,
			)
		}
	}

	out.Calibration = c.calib.Status()
	out.Threshold = c.threshold()
	out.BlinkState = c.det.State()
	out.TotalBlinks = c.totalBlinks
	out.Rate = c.rate.CurrentRate(now)
	out.RecentBlinks = c.rate.RecentCount(now)
	out.SessionDurationMs = now - startMs

	if out.Calibration.Complete() {
		out.LowRate = c.arb.LowRate(out.Rate, out.SessionDurationMs, out.RecentBlinks)
		out.Alert = c.arb.Evaluate(now, out.Rate, out.SessionDurationMs, out.RecentBlinks)
		if out.Alert.Fire {
			c.log.Warn("low blink rate alert",
				"rate", out.Rate,
				"threshold", c.arb.Config().LowBlinkThreshold,
				"session_id", c.sessionID,
			)
		}
	}
	out.AlertActive = c.arb.Active()
	return out
}

// Reset dispatches to ResetCalibration or ResetSession.
func (c *Controller) Reset(kind ResetKind) error {
	switch kind {
	case ResetCalibration:
		c.ResetCalibration()
	case ResetSession:
		c.ResetSession()
	default:
		return fmt.Errorf("session: unknown reset kind %q", kind)
	}
	return nil
}

// ResetCalibration discards the baseline and restarts calibration. Blink
// history and the cumulative total are kept; the session clock restarts.
func (c *Controller) ResetCalibration() {
	c.calib.Reset()
	c.det.Reset()
	c.rate.ClearStart()
	c.log.Info("calibration reset")
}

// ResetSession clears blink history and restarts the session clock under a
// new session ID. The cumulative blink total is kept.
func (c *Controller) ResetSession() {
	c.rate.Clear()
	c.det.Reset()
	c.rate.ClearStart()
	c.sessionID = c.newID()
	c.log.Info("session reset", "session_id", c.sessionID)
}

// DismissAlert acknowledges the active alert and starts a fresh session, as
// after a break. The cumulative blink total is kept.
func (c *Controller) DismissAlert() {
	wasActive := c.arb.Active()
	c.arb.Dismiss()
	c.rate.Clear()
	c.rate.ClearStart()
	c.sessionID = c.newID()
	c.log.Info("alert dismissed", "was_active", wasActive, "session_id", c.sessionID)
}

// SetLowBlinkThreshold applies a new low-rate threshold, clamped to [5, 25],
// and returns the applied value.
func (c *Controller) SetLowBlinkThreshold(v float64) float64 {
	applied := c.arb.SetLowBlinkThreshold(v)
	c.log.Info("low blink threshold updated", "requested", v, "applied", applied)
	return applied
}

// Summary reports the state as of the last processed frame.
func (c *Controller) Summary() Summary {
	s := Summary{
		SessionID:         c.sessionID,
		TotalBlinks:       c.totalBlinks,
		Calibration:       c.calib.Status(),
		Threshold:         c.threshold(),
		LowBlinkThreshold: c.arb.Config().LowBlinkThreshold,
		AlertActive:       c.arb.Active(),
		LastTimestampMs:   c.lastTs,
	}
	if c.seen {
		s.RecentBlinks = c.rate.RecentCount(c.lastTs)
		// Between a reset and the next frame there is no session clock to
		// measure a rate against.
		if startMs, ok := c.rate.Start(); ok {
			s.Rate = c.rate.CurrentRate(c.lastTs)
			s.SessionDurationMs = c.lastTs - startMs
		}
	}
	return s
}

// TotalBlinks returns the cumulative blink count.
func (c *Controller) TotalBlinks() int { return c.totalBlinks }

// BlinkTimestamps returns the blink times currently held for rate estimation.
func (c *Controller) BlinkTimestamps() []int64 { return c.rate.Timestamps() }

// Calibration returns the calibration progress.
func (c *Controller) Calibration() calibration.Status { return c.calib.Status() }

// SessionID returns the current session identifier.
func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) threshold() float64 {
	if baseline, ok := c.calib.Baseline(); ok {
		return baseline * c.cfg.EARThresholdRatio
	}
	return 0
}
