package monitor

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eyeWithEAR builds a 10px-wide eye whose aspect ratio is ear.
func eyeWithEAR(ear float64) types.EyeSample {
	h := ear * 10 / 2
	return types.EyeSample{
		{X: 0, Y: 0}, {X: 3, Y: h}, {X: 7, Y: h},
		{X: 10, Y: 0}, {X: 7, Y: -h}, {X: 3, Y: -h},
	}
}

func frame(ts int64, ear float64) types.FrameInput {
	return types.FrameInput{LeftEye: eyeWithEAR(ear), RightEye: eyeWithEAR(ear), TimestampMs: ts}
}

func newMonitor(t *testing.T, opts ...Option) *Monitor {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.BaselineFrames = 3
	ctl, err := session.New(cfg, session.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return New(ctl, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestSubmit_PublishesAndSnapshots(t *testing.T) {
	var events []Event
	m := newMonitor(t, WithObserver(ObserverFunc(func(ev Event) { events = append(events, ev) })))

	if _, ok := m.Latest(); ok {
		t.Fatal("Latest should be empty before the first frame")
	}

	for i := int64(0); i < 3; i++ {
		if _, err := m.Submit(frame(i*33, 0.3)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	out, ok := m.Latest()
	if !ok || out.TimestampMs != 66 {
		t.Fatalf("Latest: %+v, %v", out, ok)
	}
	if !out.Calibration.Complete() {
		t.Error("calibration should be complete after 3 frames")
	}
	if !m.Summary().Calibration.Complete() {
		t.Error("summary should reflect calibration")
	}
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventFrame || ev.Outcome == nil {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if st := m.Stats(); st.Processed != 3 || st.Dropped != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestSubmit_OutOfOrder(t *testing.T) {
	m := newMonitor(t)
	if _, err := m.Submit(frame(100, 0.3)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(frame(100, 0.3)); err != nil {
		t.Errorf("equal timestamp should be accepted: %v", err)
	}
	_, err := m.Submit(frame(99, 0.3))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("got %v, want ErrOutOfOrder", err)
	}
	if st := m.Stats(); st.OutOfOrder != 1 || st.Processed != 2 {
		t.Errorf("stats: %+v", st)
	}
	if out, _ := m.Latest(); out.TimestampMs != 100 {
		t.Errorf("rejected frame must not replace latest, got ts %d", out.TimestampMs)
	}
}

func TestSubmit_BusyDropsFrame(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	block := ObserverFunc(func(ev Event) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})
	m := newMonitor(t, WithObserver(block))

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(frame(0, 0.3))
		done <- err
	}()
	<-entered

	if _, err := m.Submit(frame(33, 0.3)); !errors.Is(err, ErrBusy) {
		t.Errorf("got %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	st := m.Stats()
	if st.Dropped != 1 || st.Processed != 1 {
		t.Errorf("stats: %+v", st)
	}
	if _, err := m.Submit(frame(66, 0.3)); err != nil {
		t.Errorf("Submit after release: %v", err)
	}
}

func TestControl_EventsAndSessionChange(t *testing.T) {
	var events []Event
	m := newMonitor(t, WithObserver(ObserverFunc(func(ev Event) { events = append(events, ev) })))
	for i := int64(0); i < 4; i++ {
		m.Submit(frame(i*33, 0.3))
	}
	first := m.Summary().SessionID
	events = nil

	sum := m.ResetSession()
	if sum.SessionID == first {
		t.Error("session reset should change the session ID")
	}
	if len(events) != 1 || events[0].Kind != EventSessionReset || events[0].PrevSessionID != first {
		t.Fatalf("session reset event: %+v", events)
	}

	events = nil
	sum = m.ResetCalibration()
	if sum.Calibration.Complete() {
		t.Error("calibration reset should clear the baseline")
	}
	if len(events) != 1 || events[0].Kind != EventCalibrationReset || events[0].PrevSessionID != "" {
		t.Fatalf("calibration reset event: %+v", events)
	}

	if got := m.SetLowBlinkThreshold(40); got != 25 {
		t.Errorf("threshold: got %v, want clamped 25", got)
	}
	if got := m.Summary().LowBlinkThreshold; got != 25 {
		t.Errorf("summary threshold: got %v", got)
	}

	if _, err := m.Reset(session.ResetKind("bogus")); err == nil {
		t.Error("unknown reset kind should fail")
	}
}

func TestControl_WaitsForInFlightFrame(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var order []EventKind
	var mu sync.Mutex
	obs := ObserverFunc(func(ev Event) {
		mu.Lock()
		order = append(order, ev.Kind)
		mu.Unlock()
		if ev.Kind == EventFrame {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})
	m := newMonitor(t, WithObserver(obs))

	go m.Submit(frame(0, 0.3))
	<-entered

	done := make(chan struct{})
	go func() {
		m.DismissAlert()
		close(done)
	}()
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != EventFrame || order[1] != EventAlertDismissed {
		t.Errorf("order: %v", order)
	}
}

func TestSubscribe_AfterConstruction(t *testing.T) {
	var first, second int
	m := newMonitor(t, WithObserver(ObserverFunc(func(Event) { first++ })))
	m.Submit(frame(0, 0.3))
	m.Subscribe(ObserverFunc(func(Event) { second++ }))
	m.Subscribe(nil)
	m.Submit(frame(33, 0.3))

	if first != 2 || second != 1 {
		t.Errorf("observer calls: first=%d second=%d, want 2 and 1", first, second)
	}
}
