package alerts

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blinkwatch/blinkwatch/internal/arbiter"
	"github.com/blinkwatch/blinkwatch/internal/config"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/internal/store"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// recorder is a webhook endpoint that keeps every request body.
type recorder struct {
	mu     sync.Mutex
	bodies []string
	srv    *httptest.Server
}

func newRecorder(t *testing.T, status int) *recorder {
	t.Helper()
	r := &recorder{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, string(b))
		r.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func fireEvent(ts int64, rate float64) monitor.Event {
	out := session.Outcome{
		SessionID:         "s1",
		TimestampMs:       ts,
		Rate:              rate,
		RecentBlinks:      3,
		SessionDurationMs: 40000,
		Alert:             arbiter.Decision{Fire: true, Rate: rate},
		AlertActive:       true,
	}
	return monitor.Event{
		Kind:    monitor.EventFrame,
		Outcome: &out,
		Summary: session.Summary{SessionID: "s1", LowBlinkThreshold: 10, LastTimestampMs: ts},
	}
}

func dismissEvent(ts int64) monitor.Event {
	return monitor.Event{
		Kind:          monitor.EventAlertDismissed,
		Summary:       session.Summary{SessionID: "s2", LastTimestampMs: ts},
		PrevSessionID: "s1",
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return "alert-" + string(rune('0'+n))
	}
}

// The controller already logs the firing at Warn; the notifier only traces.
func TestNotifier_FireLogsBelowWarn(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	n := NewNotifier(nil, store.New(time.Hour), WithIDFunc(seqIDs()), WithLogger(log))

	n.Observe(fireEvent(40000, 4.5))
	n.Observe(dismissEvent(45000))
	n.Wait()

	if buf.Len() != 0 {
		t.Errorf("notifier logged at warn or above:\n%s", buf.String())
	}
}

func TestNotifier_FireAndDismissRecords(t *testing.T) {
	st := store.New(time.Hour)
	n := NewNotifier(nil, st, WithIDFunc(seqIDs()))

	n.Observe(fireEvent(40000, 4.5))
	a, ok := n.Active()
	if !ok {
		t.Fatal("expected an active alert after fire")
	}
	if a.ID != "alert-1" || a.State != types.AlertFiring || a.Rate != 4.5 || a.LowBlinkThreshold != 10 {
		t.Errorf("fired record: %+v", a)
	}
	if a.FiredAtMs != 40000 || a.SessionID != "s1" {
		t.Errorf("fired record times: %+v", a)
	}

	n.Observe(dismissEvent(45000))
	if _, ok := n.Active(); ok {
		t.Error("no alert should be active after dismissal")
	}
	e, _ := st.Get("alert-1")
	if e.Alert.State != types.AlertDismissed || e.Alert.DismissedAtMs != 45000 {
		t.Errorf("dismissed record: %+v", e.Alert)
	}

	// A second dismissal with nothing firing is a no-op.
	n.Observe(dismissEvent(46000))
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
}

func TestNotifier_IgnoresNonFiringFrames(t *testing.T) {
	st := store.New(time.Hour)
	n := NewNotifier(nil, st)

	ev := fireEvent(1000, 4)
	ev.Outcome.Alert.Fire = false
	n.Observe(ev)
	n.Observe(monitor.Event{Kind: monitor.EventSessionReset})

	if st.Count() != 0 {
		t.Errorf("no record expected, got %d", st.Count())
	}
}

func TestNotifier_DeliversWebhooks(t *testing.T) {
	slack := newRecorder(t, http.StatusOK)
	generic := newRecorder(t, http.StatusOK)
	teams := newRecorder(t, http.StatusInternalServerError)
	t.Setenv("BW_TEST_SLACK", slack.srv.URL)
	t.Setenv("BW_TEST_HTTP", generic.srv.URL)
	t.Setenv("BW_TEST_TEAMS", teams.srv.URL)

	hooks := []config.WebhookConfig{
		{Type: "slack", URLEnv: "BW_TEST_SLACK"},
		{Type: "http", URLEnv: "BW_TEST_HTTP"},
		{Type: "teams", URLEnv: "BW_TEST_TEAMS"},
		{Type: "http", URLEnv: "BW_TEST_UNSET"},
		{Type: "pager", URLEnv: "BW_TEST_HTTP"},
	}
	n := NewNotifier(hooks, store.New(time.Hour), WithIDFunc(seqIDs()))

	n.Observe(fireEvent(40000, 4.5))
	n.Observe(dismissEvent(41000))
	n.Wait()

	sb := slack.got()
	if len(sb) != 2 {
		t.Fatalf("slack: got %d posts, want 2", len(sb))
	}
	joined := strings.Join(sb, "\n")
	if !strings.Contains(joined, "4.5 blinks/min") || !strings.Contains(joined, "[DISMISSED]") {
		t.Errorf("slack bodies: %s", joined)
	}

	gb := generic.got()
	if len(gb) != 2 {
		t.Fatalf("http: got %d posts, want 2", len(gb))
	}
	states := map[types.AlertState]bool{}
	for _, b := range gb {
		var payload struct {
			Alert types.Alert `json:"alert"`
		}
		if err := json.Unmarshal([]byte(b), &payload); err != nil {
			t.Fatalf("http body: %v", err)
		}
		if payload.Alert.ID != "alert-1" {
			t.Errorf("http alert id: %q", payload.Alert.ID)
		}
		states[payload.Alert.State] = true
	}
	if !states[types.AlertFiring] || !states[types.AlertDismissed] {
		t.Errorf("http states: %v", states)
	}

	// A failing target is attempted and logged, never retried.
	if got := len(teams.got()); got != 2 {
		t.Errorf("teams: got %d posts, want 2", got)
	}
}
