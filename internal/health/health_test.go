package health

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/blinkwatch/blinkwatch/internal/calibration"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
)

func check(t *testing.T, r *Reporter) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := r.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return resp.GetStatus()
}

func event(complete bool) monitor.Event {
	phase := calibration.PhaseFilling
	if complete {
		phase = calibration.PhaseComplete
	}
	return monitor.Event{
		Kind:    monitor.EventFrame,
		Summary: session.Summary{Calibration: calibration.Status{Phase: phase}},
	}
}

func TestReporter_FollowsCalibration(t *testing.T) {
	r := New()
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial: got %v, want NOT_SERVING", got)
	}

	r.Observe(event(false))
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("filling: got %v", got)
	}

	r.Observe(event(true))
	if got := check(t, r); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("calibrated: got %v, want SERVING", got)
	}

	reset := event(false)
	reset.Kind = monitor.EventCalibrationReset
	r.Observe(reset)
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after reset: got %v, want NOT_SERVING", got)
	}
}

func TestReporter_Shutdown(t *testing.T) {
	r := New()
	r.SetCalibrated(true)
	r.Shutdown()
	if got := check(t, r); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after shutdown: got %v", got)
	}
}
