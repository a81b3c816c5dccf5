// Package metrics exposes blink monitor state as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blinkwatch/blinkwatch/internal/monitor"
)

const namespace = "blinkwatch"

// Metrics holds the counters and gauges fed by monitor events.
// It implements monitor.Observer.
type Metrics struct {
	registry *prometheus.Registry

	blinksTotal     prometheus.Counter
	alertsTotal     prometheus.Counter
	controlTotal    *prometheus.CounterVec
	blinkRate       prometheus.Gauge
	recentBlinks    prometheus.Gauge
	calibrated      prometheus.Gauge
	earThreshold    prometheus.Gauge
	lowThreshold    prometheus.Gauge
	alertActive     prometheus.Gauge
	sessionDuration prometheus.Gauge
	ear             *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
}

// New creates and registers the metrics. stats, when non-nil, backs the
// frame counters (processed, dropped, out of order) at scrape time.
func New(stats func() monitor.Stats) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		blinksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blinks_total",
			Help:      "Total number of committed blinks",
		}),
		alertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of low blink rate alerts fired",
		}),
		controlTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_operations_total",
			Help:      "Control operations applied, by kind",
		}, []string{"kind"}),
		blinkRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blink_rate_per_minute",
			Help:      "Blink rate over the rolling window",
		}),
		recentBlinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recent_blinks",
			Help:      "Blinks currently inside the rolling window",
		}),
		calibrated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibrated",
			Help:      "1 once the open-eye baseline is established",
		}),
		earThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ear_threshold",
			Help:      "Adaptive closed-eye EAR threshold (0 until calibrated)",
		}),
		lowThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_blink_threshold",
			Help:      "Configured low blink rate threshold in blinks per minute",
		}),
		alertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while an alert awaits dismissal",
		}),
		sessionDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time since the current session started",
		}),
		ear: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eye_aspect_ratio",
			Help:      "EAR of the last processed frame, by eye",
		}, []string{"eye"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by status class",
		}, []string{"code"}),
	}

	registry.MustRegister(
		m.blinksTotal,
		m.alertsTotal,
		m.controlTotal,
		m.blinkRate,
		m.recentBlinks,
		m.calibrated,
		m.earThreshold,
		m.lowThreshold,
		m.alertActive,
		m.sessionDuration,
		m.ear,
		m.httpRequests,
	)

	if stats != nil {
		registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_processed_total",
				Help:      "Frames run through the detector",
			}, func() float64 { return float64(stats().Processed) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Frames dropped because the previous frame was still processing",
			}, func() float64 { return float64(stats().Dropped) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_out_of_order_total",
				Help:      "Frames rejected for a timestamp older than the last accepted frame",
			}, func() float64 { return float64(stats().OutOfOrder) }),
		)
	}
	return m
}

// Observe updates the metrics from a monitor event.
func (m *Metrics) Observe(ev monitor.Event) {
	sum := ev.Summary
	m.blinkRate.Set(sum.Rate)
	m.recentBlinks.Set(float64(sum.RecentBlinks))
	m.calibrated.Set(boolFloat(sum.Calibration.Complete()))
	m.earThreshold.Set(sum.Threshold)
	m.lowThreshold.Set(sum.LowBlinkThreshold)
	m.alertActive.Set(boolFloat(sum.AlertActive))
	m.sessionDuration.Set(float64(sum.SessionDurationMs) / 1000)

	if ev.Kind != monitor.EventFrame {
		m.controlTotal.WithLabelValues(string(ev.Kind)).Inc()
		return
	}
	if out := ev.Outcome; out != nil {
		m.ear.WithLabelValues("left").Set(out.LeftEAR)
		m.ear.WithLabelValues("right").Set(out.RightEAR)
		if out.BlinkCommitted {
			m.blinksTotal.Inc()
		}
		if out.Alert.Fire {
			m.alertsTotal.Inc()
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// responseWriter captures the status code for RequestMiddleware.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware counts requests by status class (2xx, 4xx, ...).
func (m *Metrics) RequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		m.httpRequests.WithLabelValues(strconv.Itoa(wrap.status/100) + "xx").Inc()
	})
}
