// Package health publishes calibration readiness through the standard gRPC
// health service. The "blinkwatch" service is NOT_SERVING until the open-eye
// baseline exists and goes back to NOT_SERVING when calibration is reset.
package health

import (
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/blinkwatch/blinkwatch/internal/monitor"
)

// Service is the name reported to health checks.
const Service = "blinkwatch"

// Reporter tracks readiness. It implements monitor.Observer.
type Reporter struct {
	srv *grpchealth.Server

	mu         sync.Mutex
	calibrated bool
}

// New returns a Reporter in the NOT_SERVING state.
func New() *Reporter {
	r := &Reporter{srv: grpchealth.NewServer()}
	r.srv.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return r
}

// Register attaches the health service to s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Observe follows calibration state from monitor events.
func (r *Reporter) Observe(ev monitor.Event) {
	r.SetCalibrated(ev.Summary.Calibration.Complete())
}

// SetCalibrated updates the serving status when readiness changes.
func (r *Reporter) SetCalibrated(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok == r.calibrated {
		return
	}
	r.calibrated = ok
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.srv.SetServingStatus(Service, st)
}

// Shutdown marks every service NOT_SERVING ahead of process exit.
func (r *Reporter) Shutdown() { r.srv.Shutdown() }
