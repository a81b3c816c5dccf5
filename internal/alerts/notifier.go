package alerts

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blinkwatch/blinkwatch/internal/config"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/internal/store"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the webhook client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithIDFunc replaces the alert ID generator.
func WithIDFunc(f func() string) Option {
	return func(n *Notifier) {
		if f != nil {
			n.newID = f
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// Notifier records fired and dismissed alerts and delivers webhooks.
// It implements monitor.Observer.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.WebhookConfig
	store    *store.Store
	client   *http.Client
	newID    func() string
	log      *slog.Logger

	mu     sync.Mutex
	firing string // ID of the alert awaiting dismissal
	wg     sync.WaitGroup
}

// NewNotifier returns a Notifier writing records to st.
// With no webhooks the Notifier only records.
func NewNotifier(webhooks []config.WebhookConfig, st *store.Store, opts ...Option) *Notifier {
	n := &Notifier{
		webhooks: webhooks,
		store:    st,
		client:   &http.Client{Timeout: 10 * time.Second},
		newID:    uuid.NewString,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Observe handles monitor events: a fired decision creates a record, an alert
// dismissal closes it. Delivery happens on a separate goroutine.
func (n *Notifier) Observe(ev monitor.Event) {
	switch ev.Kind {
	case monitor.EventFrame:
		if ev.Outcome != nil && ev.Outcome.Alert.Fire {
			n.fire(ev.Outcome, ev.Summary)
		}
	case monitor.EventAlertDismissed:
		n.dismiss(ev.Summary.LastTimestampMs)
	}
}

// Active returns the alert awaiting dismissal, if any.
func (n *Notifier) Active() (types.Alert, bool) {
	n.mu.Lock()
	id := n.firing
	n.mu.Unlock()
	if id == "" {
		return types.Alert{}, false
	}
	e, ok := n.store.Get(id)
	return e.Alert, ok
}

// Wait blocks until in-flight webhook deliveries finish.
func (n *Notifier) Wait() { n.wg.Wait() }

func (n *Notifier) fire(out *session.Outcome, sum session.Summary) {
	a := types.Alert{
		ID:                n.newID(),
		SessionID:         out.SessionID,
		State:             types.AlertFiring,
		Rate:              out.Rate,
		LowBlinkThreshold: sum.LowBlinkThreshold,
		RecentBlinks:      out.RecentBlinks,
		SessionDurationMs: out.SessionDurationMs,
		FiredAtMs:         out.TimestampMs,
	}

	n.mu.Lock()
	n.firing = a.ID
	n.mu.Unlock()
	n.store.Put(a)

	n.log.Debug("alerts: recorded",
		"id", a.ID,
		"session_id", a.SessionID,
		"webhooks", len(n.webhooks),
	)
	n.send(a)
}

func (n *Notifier) dismiss(atMs int64) {
	n.mu.Lock()
	id := n.firing
	n.firing = ""
	n.mu.Unlock()
	if id == "" {
		return
	}

	var a types.Alert
	ok := n.store.Update(id, func(rec *types.Alert) {
		rec.State = types.AlertDismissed
		rec.DismissedAtMs = atMs
		a = *rec
	})
	if !ok {
		n.log.Debug("alerts: dismissed alert already expired", "id", id)
		return
	}
	n.log.Info("alerts: dismissed", "id", id)
	n.send(a)
}

func (n *Notifier) send(a types.Alert) {
	if len(n.webhooks) == 0 {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(&a)
	}()
}
