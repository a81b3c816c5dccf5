package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/source"
	"github.com/blinkwatch/blinkwatch/internal/store"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// maxBodyBytes bounds request bodies; one mesh frame is well under this.
const maxBodyBytes = 1 << 20

// ActiveAlertSource reports the alert still awaiting dismissal.
type ActiveAlertSource interface {
	Active() (types.Alert, bool)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	mon    *monitor.Monitor
	alerts *store.Store
	active ActiveAlertSource
	guard  func(http.Handler) http.Handler
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithActiveAlert makes GET /alerts report the firing alert alongside the
// history.
func WithActiveAlert(src ActiveAlertSource) Option {
	return func(h *Handler) { h.active = src }
}

// New returns a Handler. guard wraps the mutating routes; nil leaves them open.
// log may be nil.
func New(mon *monitor.Monitor, alerts *store.Store, guard func(http.Handler) http.Handler, log *slog.Logger, opts ...Option) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{mon: mon, alerts: alerts, guard: guard, log: log, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns a router to be mounted at /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.status)
	r.Get("/alerts", h.listAlerts)

	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Post("/frames", h.submitFrame)
		r.Post("/calibration/reset", h.resetCalibration)
		r.Post("/session/reset", h.resetSession)
		r.Post("/alert/dismiss", h.dismissAlert)
		r.Put("/threshold", h.setThreshold)
	})
	return r
}

// status handles GET /status.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildStatus(h.mon, h.now()))
}

// listAlerts handles GET /alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	resp := AlertsResponse{Alerts: h.alerts.List()}
	if h.active != nil {
		if a, ok := h.active.Active(); ok {
			resp.Active = &a
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// submitFrame handles POST /frames. The body is one JSON frame in either
// the eye-landmark or the face-mesh form.
func (h *Handler) submitFrame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, readErrStatus(err), "read body: "+err.Error())
		return
	}
	f, err := source.Decode(body)
	if err != nil {
		h.log.Debug("api: invalid frame body", "err", err)
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.mon.Submit(f)
	switch {
	case errors.Is(err, monitor.ErrBusy):
		jsonErr(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, monitor.ErrOutOfOrder):
		jsonErr(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error("api: submit frame failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResp(w, http.StatusOK, toFrameResponse(out))
}

// resetCalibration handles POST /calibration/reset.
func (h *Handler) resetCalibration(w http.ResponseWriter, r *http.Request) {
	h.mon.ResetCalibration()
	h.log.Info("api: calibration reset requested", "remote", r.RemoteAddr)
	jsonResp(w, http.StatusOK, BuildStatus(h.mon, h.now()))
}

// resetSession handles POST /session/reset.
func (h *Handler) resetSession(w http.ResponseWriter, r *http.Request) {
	h.mon.ResetSession()
	h.log.Info("api: session reset requested", "remote", r.RemoteAddr)
	jsonResp(w, http.StatusOK, BuildStatus(h.mon, h.now()))
}

// dismissAlert handles POST /alert/dismiss.
func (h *Handler) dismissAlert(w http.ResponseWriter, r *http.Request) {
	h.mon.DismissAlert()
	jsonResp(w, http.StatusOK, BuildStatus(h.mon, h.now()))
}

// setThreshold handles PUT /threshold.
func (h *Handler) setThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonErr(w, readErrStatus(err), "invalid JSON body")
		return
	}
	if req.Value == nil || math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0) {
		jsonErr(w, http.StatusBadRequest, "value must be a finite number")
		return
	}
	applied := h.mon.SetLowBlinkThreshold(*req.Value)
	jsonResp(w, http.StatusOK, ThresholdResponse{LowBlinkThreshold: applied})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// readErrStatus maps a body read failure to 413 when the size cap tripped
// and 400 otherwise.
func readErrStatus(err error) int {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
