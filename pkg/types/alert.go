package types

// AlertState is the lifecycle state of a low-blink-rate alert.
type AlertState string

const (
	AlertFiring    AlertState = "firing"
	AlertDismissed AlertState = "dismissed"
)

// Alert is one low-blink-rate notification. Times are frame-clock
// milliseconds, the same clock as FrameInput.TimestampMs.
type Alert struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id"`
	State             AlertState `json:"state"`
	Rate              float64    `json:"rate"`
	LowBlinkThreshold float64    `json:"low_blink_threshold"`
	RecentBlinks      int        `json:"recent_blinks"`
	SessionDurationMs int64      `json:"session_duration_ms"`
	FiredAtMs         int64      `json:"fired_at_ms"`
	DismissedAtMs     int64      `json:"dismissed_at_ms,omitempty"`
}
