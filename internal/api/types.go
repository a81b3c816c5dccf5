package api

import (
	"math"

	"github.com/blinkwatch/blinkwatch/internal/blink"
	"github.com/blinkwatch/blinkwatch/internal/calibration"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// StatusResponse is the payload for GET /api/v1/status and the websocket stream.
type StatusResponse struct {
	SessionID         string             `json:"session_id"`
	Calibration       calibration.Status `json:"calibration"`
	EARThreshold      float64            `json:"ear_threshold"`
	LowBlinkThreshold float64            `json:"low_blink_threshold"`
	TotalBlinks       int                `json:"total_blinks"`
	Rate              float64            `json:"rate"`
	RecentBlinks      int                `json:"recent_blinks"`
	SessionDurationMs int64              `json:"session_duration_ms"`
	AlertActive       bool               `json:"alert_active"`
	LastTimestampMs   int64              `json:"last_timestamp_ms"`
	LastFrame         *FrameResponse     `json:"last_frame,omitempty"`
	Frames            monitor.Stats      `json:"frames"`
	Diagnostics       []DiagnosticHint   `json:"diagnostics"`
	GeneratedAt       string             `json:"generated_at"` // RFC3339
}

// FrameResponse is the per-frame result for POST /api/v1/frames.
// EAR values are null when the eye sample was degenerate.
type FrameResponse struct {
	SessionID      string       `json:"session_id"`
	TimestampMs    int64        `json:"timestamp_ms"`
	LeftEAR        *float64     `json:"left_ear"`
	RightEAR       *float64     `json:"right_ear"`
	BlinkState     blink.State  `json:"blink_state"`
	BlinkCommitted bool         `json:"blink_committed"`
	Blink          *blink.Event `json:"blink,omitempty"`
	TotalBlinks    int          `json:"total_blinks"`
	Rate           float64      `json:"rate"`
	RecentBlinks   int          `json:"recent_blinks"`
	LowRate        bool         `json:"low_rate"`
	AlertFired     bool         `json:"alert_fired"`
	AlertActive    bool         `json:"alert_active"`
	Calibrating    bool         `json:"calibrating"`
}

// ThresholdRequest is the body for PUT /api/v1/threshold.
type ThresholdRequest struct {
	Value *float64 `json:"value"`
}

// ThresholdResponse reports the threshold actually applied.
type ThresholdResponse struct {
	LowBlinkThreshold float64 `json:"low_blink_threshold"`
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	// Active is the alert awaiting dismissal, or null.
	Active *types.Alert  `json:"active"`
	Alerts []types.Alert `json:"alerts"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func toFrameResponse(out session.Outcome) FrameResponse {
	return FrameResponse{
		SessionID:      out.SessionID,
		TimestampMs:    out.TimestampMs,
		LeftEAR:        finite(out.LeftEAR),
		RightEAR:       finite(out.RightEAR),
		BlinkState:     out.BlinkState,
		BlinkCommitted: out.BlinkCommitted,
		Blink:          out.Blink,
		TotalBlinks:    out.TotalBlinks,
		Rate:           out.Rate,
		RecentBlinks:   out.RecentBlinks,
		LowRate:        out.LowRate,
		AlertFired:     out.Alert.Fire,
		AlertActive:    out.AlertActive,
		Calibrating:    !out.Calibration.Complete(),
	}
}

// finite maps NaN and ±Inf to nil; encoding/json rejects them.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
