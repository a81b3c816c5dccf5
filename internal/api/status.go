package api

import (
	"fmt"
	"time"

	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
)

// StatusSource is the read side of a monitor.Monitor.
type StatusSource interface {
	Summary() session.Summary
	Latest() (session.Outcome, bool)
	Stats() monitor.Stats
}

// BuildStatus assembles the status payload from src.
func BuildStatus(src StatusSource, now time.Time) StatusResponse {
	sum := src.Summary()
	resp := StatusResponse{
		SessionID:         sum.SessionID,
		Calibration:       sum.Calibration,
		EARThreshold:      sum.Threshold,
		LowBlinkThreshold: sum.LowBlinkThreshold,
		TotalBlinks:       sum.TotalBlinks,
		Rate:              sum.Rate,
		RecentBlinks:      sum.RecentBlinks,
		SessionDurationMs: sum.SessionDurationMs,
		AlertActive:       sum.AlertActive,
		LastTimestampMs:   sum.LastTimestampMs,
		Frames:            src.Stats(),
		GeneratedAt:       now.UTC().Format(time.RFC3339),
	}
	var latest *session.Outcome
	if out, ok := src.Latest(); ok {
		fr := toFrameResponse(out)
		resp.LastFrame = &fr
		latest = &out
	}
	resp.Diagnostics = computeDiagnostics(sum, latest, resp.Frames)

	// A baseline built from degenerate samples is not representable in JSON.
	if finite(resp.Calibration.Baseline) == nil {
		resp.Calibration.Baseline = 0
	}
	if finite(resp.EARThreshold) == nil {
		resp.EARThreshold = 0
	}
	return resp
}

// DiagnosticHint is one human-readable note about the monitor state.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning".
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from the summary and the last frame.
// Warnings come before info; an all-clear hint is returned when nothing applies.
func computeDiagnostics(sum session.Summary, latest *session.Outcome, st monitor.Stats) []DiagnosticHint {
	var warn, info []DiagnosticHint

	if sum.AlertActive {
		rate := sum.Rate
		warn = append(warn, DiagnosticHint{
			Key:   "low_blink_rate",
			Level: "warning",
			Title: "Blink more",
			Detail: fmt.Sprintf("Blink rate fell to %.1f per minute, below the %.0f per minute threshold. "+
				"Look away from the screen for a moment and dismiss the alert when you are back.",
				sum.Rate, sum.LowBlinkThreshold),
			Value: &rate,
		})
	}

	if latest != nil && finite(latest.LeftEAR) == nil && finite(latest.RightEAR) == nil {
		warn = append(warn, DiagnosticHint{
			Key:   "no_eyes",
			Level: "warning",
			Title: "Eyes not found",
			Detail: "The last frame carried no usable eye landmarks. " +
				"Check that the face is visible to the camera and the landmark detector is running.",
		})
	}

	if sum.Calibration.Complete() && finite(sum.Calibration.Baseline) == nil {
		warn = append(warn, DiagnosticHint{
			Key:   "bad_baseline",
			Level: "warning",
			Title: "Recalibrate",
			Detail: "Calibration finished on frames without usable eye landmarks, so no blink can be detected. " +
				"Face the camera and reset calibration.",
		})
	}

	if total := st.Processed + st.Dropped; total > 0 && st.Dropped > 0 {
		pct := float64(st.Dropped) / float64(total) * 100
		if pct >= 10 {
			warn = append(warn, DiagnosticHint{
				Key:   "frames_dropped",
				Level: "warning",
				Title: "Frames dropped",
				Detail: fmt.Sprintf("%.0f%% of frames arrived while the previous one was still being processed and were dropped. "+
					"Lower the frame rate of the feed.", pct),
				Value: &pct,
			})
		}
	}

	if !sum.Calibration.Complete() {
		progress := float64(sum.Calibration.Samples)
		info = append(info, DiagnosticHint{
			Key:   "calibrating",
			Level: "info",
			Title: "Calibrating",
			Detail: fmt.Sprintf("Collecting open-eye samples (%d of %d). Keep your eyes open and look at the screen.",
				sum.Calibration.Samples, sum.Calibration.Target),
			Value: &progress,
		})
	}

	if len(warn) == 0 && len(info) == 0 {
		return []DiagnosticHint{{
			Key:    "ok",
			Level:  "ok",
			Title:  "All good",
			Detail: "Calibrated and blinking at a healthy rate.",
		}}
	}
	return append(warn, info...)
}
