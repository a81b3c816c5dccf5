package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

var (
	// ErrBusy is returned by Submit when the previous frame is still in flight.
	ErrBusy = errors.New("monitor: busy, frame dropped")

	// ErrOutOfOrder is returned by Submit when a frame is older than the last
	// accepted one.
	ErrOutOfOrder = errors.New("monitor: frame timestamp out of order")
)

// EventKind identifies what produced an Event.
type EventKind string

const (
	EventFrame            EventKind = "frame"
	EventCalibrationReset EventKind = "calibration_reset"
	EventSessionReset     EventKind = "session_reset"
	EventAlertDismissed   EventKind = "alert_dismissed"
	EventThresholdChanged EventKind = "threshold_changed"
)

// Event is delivered to observers after each accepted frame or control call.
type Event struct {
	Kind EventKind
	// Outcome is set for EventFrame only.
	Outcome *session.Outcome
	// Summary is the controller state after the event.
	Summary session.Summary
	// PrevSessionID is the session that was replaced by a reset or dismissal.
	PrevSessionID string
}

// Observer receives events. Implementations must return quickly.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Stats counts Submit results since construction.
type Stats struct {
	Processed  uint64 `json:"processed"`
	Dropped    uint64 `json:"dropped"`
	OutOfOrder uint64 `json:"out_of_order"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithObserver registers o. Observers are called in registration order.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// Monitor serializes access to a session.Controller.
//
// All exported methods are safe for concurrent use.
type Monitor struct {
	core sync.Mutex // guards ctl, lastTs, hasTs
	ctl  *session.Controller

	lastTs int64
	hasTs  bool

	// snapshot of the last published state, readable without core.
	snapMu    sync.RWMutex
	latest    session.Outcome
	hasLatest bool
	summary   session.Summary

	observers []Observer
	log       *slog.Logger

	processed  atomic.Uint64
	dropped    atomic.Uint64
	outOfOrder atomic.Uint64
}

// New wraps ctl. The caller must not use ctl directly afterwards.
func New(ctl *session.Controller, opts ...Option) *Monitor {
	m := &Monitor{
		ctl: ctl,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.summary = ctl.Summary()
	return m
}

// Submit processes one frame. It never waits: if another frame is being
// processed the frame is dropped and ErrBusy returned.
func (m *Monitor) Submit(f types.FrameInput) (session.Outcome, error) {
	if !m.core.TryLock() {
		m.dropped.Add(1)
		return session.Outcome{}, ErrBusy
	}
	defer m.core.Unlock()

	if m.hasTs && f.TimestampMs < m.lastTs {
		m.outOfOrder.Add(1)
		return session.Outcome{}, fmt.Errorf("%w: %d < %d", ErrOutOfOrder, f.TimestampMs, m.lastTs)
	}
	m.lastTs = f.TimestampMs
	m.hasTs = true

	out := m.ctl.ProcessFrame(f)
	m.processed.Add(1)

	sum := m.ctl.Summary()
	m.snapMu.Lock()
	m.latest = out
	m.hasLatest = true
	m.summary = sum
	m.snapMu.Unlock()

	m.publish(Event{Kind: EventFrame, Outcome: &out, Summary: sum})
	return out, nil
}

// ResetCalibration discards the baseline and restarts calibration.
func (m *Monitor) ResetCalibration() session.Summary {
	return m.control(EventCalibrationReset, func(c *session.Controller) { c.ResetCalibration() })
}

// ResetSession clears blink history under a new session ID.
func (m *Monitor) ResetSession() session.Summary {
	return m.control(EventSessionReset, func(c *session.Controller) { c.ResetSession() })
}

// Reset dispatches on kind.
func (m *Monitor) Reset(kind session.ResetKind) (session.Summary, error) {
	switch kind {
	case session.ResetCalibration:
		return m.ResetCalibration(), nil
	case session.ResetSession:
		return m.ResetSession(), nil
	default:
		return session.Summary{}, fmt.Errorf("monitor: unknown reset kind %q", kind)
	}
}

// DismissAlert acknowledges the active alert and starts a new session.
func (m *Monitor) DismissAlert() session.Summary {
	return m.control(EventAlertDismissed, func(c *session.Controller) { c.DismissAlert() })
}

// SetLowBlinkThreshold applies v (clamped) and returns the applied value.
func (m *Monitor) SetLowBlinkThreshold(v float64) float64 {
	var applied float64
	m.control(EventThresholdChanged, func(c *session.Controller) { applied = c.SetLowBlinkThreshold(v) })
	return applied
}

// Subscribe registers o after construction, for observers that need the
// Monitor itself (the status stream reads it back).
func (m *Monitor) Subscribe(o Observer) {
	if o == nil {
		return
	}
	m.core.Lock()
	defer m.core.Unlock()
	m.observers = append(m.observers, o)
}

// Latest returns the outcome of the most recent accepted frame.
func (m *Monitor) Latest() (session.Outcome, bool) {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.latest, m.hasLatest
}

// Summary returns the controller state after the most recent event.
func (m *Monitor) Summary() session.Summary {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.summary
}

// Stats returns the Submit counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Processed:  m.processed.Load(),
		Dropped:    m.dropped.Load(),
		OutOfOrder: m.outOfOrder.Load(),
	}
}

// control runs fn under the core lock, waiting if a frame is in flight.
func (m *Monitor) control(kind EventKind, fn func(*session.Controller)) session.Summary {
	m.core.Lock()
	defer m.core.Unlock()

	prev := m.ctl.SessionID()
	fn(m.ctl)
	sum := m.ctl.Summary()

	m.snapMu.Lock()
	m.summary = sum
	m.snapMu.Unlock()

	ev := Event{Kind: kind, Summary: sum}
	if sum.SessionID != prev {
		ev.PrevSessionID = prev
	}
	m.log.Debug("monitor: control applied", "kind", kind, "session_id", sum.SessionID)
	m.publish(ev)
	return sum
}

func (m *Monitor) publish(ev Event) {
	for _, o := range m.observers {
		o.Observe(ev)
	}
}
