package session

import (
	"fmt"
	"time"

	"github.com/blinkwatch/blinkwatch/internal/arbiter"
	"github.com/blinkwatch/blinkwatch/internal/blink"
	"github.com/blinkwatch/blinkwatch/internal/calibration"
	"github.com/blinkwatch/blinkwatch/internal/rate"
)

// DefaultEARThresholdRatio scales the baseline into the closed-eye threshold.
const DefaultEARThresholdRatio = 0.75

// Config parameterizes a Controller.
type Config struct {
	BaselineFrames    int
	EARThresholdRatio float64
	MinBlinkFrames    int
	RollingWindow     time.Duration
	Alerts            arbiter.Config
}

// DefaultConfig returns the desktop profile: 60s cooldown and a 30s minimum
// session before the first alert.
func DefaultConfig() Config {
	return Config{
		BaselineFrames:    calibration.DefaultBaselineFrames,
		EARThresholdRatio: DefaultEARThresholdRatio,
		MinBlinkFrames:    blink.DefaultMinFrames,
		RollingWindow:     rate.DefaultWindow,
		Alerts: arbiter.Config{
			LowBlinkThreshold: arbiter.DefaultLowBlinkThreshold,
			Cooldown:          60 * time.Second,
			MinSessionTime:    30 * time.Second,
			MinBlinksForAlert: arbiter.DefaultMinBlinksForAlert,
		},
	}
}

// Validate rejects values the core cannot run with.
func (c Config) Validate() error {
	if c.BaselineFrames < 1 {
		return fmt.Errorf("baseline frames must be at least 1, got %d", c.BaselineFrames)
	}
	if !(c.EARThresholdRatio > 0 && c.EARThresholdRatio <= 1) {
		return fmt.Errorf("ear threshold ratio must be in (0, 1], got %v", c.EARThresholdRatio)
	}
	if c.MinBlinkFrames < 1 {
		return fmt.Errorf("min blink frames must be at least 1, got %d", c.MinBlinkFrames)
	}
	if c.RollingWindow <= 0 {
		return fmt.Errorf("rolling window must be positive, got %v", c.RollingWindow)
	}
	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	return nil
}
