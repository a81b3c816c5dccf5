package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blinkwatch/blinkwatch/internal/arbiter"
	"github.com/blinkwatch/blinkwatch/internal/session"
)

// Named alert profiles.
const (
	ProfileDesktop = "desktop"
	ProfileWeb     = "web"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultBroadcastInterval = time.Second
	DefaultHistoryTTL        = time.Hour
)

// Config is the top-level configuration.
type Config struct {
	// Profile selects the alert defaults: desktop | web.
	Profile string `yaml:"profile"`

	Detector DetectorConfig `yaml:"detector"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
}

// DetectorConfig holds the calibration and blink detection parameters.
type DetectorConfig struct {
	BaselineFrames    int           `yaml:"baseline_frames"`
	EARThresholdRatio float64       `yaml:"ear_threshold_ratio"`
	MinBlinkFrames    int           `yaml:"min_blink_frames"`
	RollingWindow     time.Duration `yaml:"rolling_window"`
}

// AlertsConfig holds low-rate alert arbitration and delivery settings.
type AlertsConfig struct {
	// LowBlinkThreshold is in blinks per minute. Values outside [5, 25] are clamped.
	LowBlinkThreshold float64 `yaml:"low_blink_threshold"`

	// Cooldown is the minimum gap between two alerts.
	Cooldown time.Duration `yaml:"cooldown"`

	// MinSessionTime is how long a session must run before the first alert.
	MinSessionTime time.Duration `yaml:"min_session_time"`

	// MinBlinksForAlert is the number of recent blinks needed to trust the rate.
	MinBlinksForAlert int `yaml:"min_blinks_for_alert"`

	// HistoryTTL is how long fired alerts stay visible in the API.
	HistoryTTL time.Duration `yaml:"history_ttl"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ServerConfig holds the HTTP, websocket and gRPC listener settings.
type ServerConfig struct {
	// HTTPPort serves the REST API, /metrics and /ws/stream. 0 disables HTTP.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves the gRPC health service. 0 disables it.
	GRPCPort int `yaml:"grpc_port"`

	// BroadcastInterval is how often the websocket hub pushes the latest status.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls API key enforcement on control endpoints and gRPC.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header / gRPC metadata key. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// LogConfig selects the slog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// SourceConfig locates the JSONL frame feed.
type SourceConfig struct {
	// Path is a file of newline-delimited frames, "-" for stdin, or empty to
	// accept frames over the HTTP API only.
	Path string `yaml:"path"`
}

// Session converts the detector and alert settings into a session.Config.
func (c *Config) Session() session.Config {
	return session.Config{
		BaselineFrames:    c.Detector.BaselineFrames,
		EARThresholdRatio: c.Detector.EARThresholdRatio,
		MinBlinkFrames:    c.Detector.MinBlinkFrames,
		RollingWindow:     c.Detector.RollingWindow,
		Alerts: arbiter.Config{
			LowBlinkThreshold: c.Alerts.LowBlinkThreshold,
			Cooldown:          c.Alerts.Cooldown,
			MinSessionTime:    c.Alerts.MinSessionTime,
			MinBlinksForAlert: c.Alerts.MinBlinksForAlert,
		},
	}
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a Config, applying profile defaults first.
func Parse(data []byte) (*Config, error) {
	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if head.Profile == "" {
		head.Profile = ProfileDesktop
	}

	cfg, err := Defaults(head.Profile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.Alerts.LowBlinkThreshold = arbiter.ClampThreshold(cfg.Alerts.LowBlinkThreshold)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated for the named profile.
func Defaults(profile string) (*Config, error) {
	sess := session.DefaultConfig()
	cfg := &Config{
		Profile: profile,
		Detector: DetectorConfig{
			BaselineFrames:    sess.BaselineFrames,
			EARThresholdRatio: sess.EARThresholdRatio,
			MinBlinkFrames:    sess.MinBlinkFrames,
			RollingWindow:     sess.RollingWindow,
		},
		Alerts: AlertsConfig{
			LowBlinkThreshold: sess.Alerts.LowBlinkThreshold,
			MinBlinksForAlert: sess.Alerts.MinBlinksForAlert,
			HistoryTTL:        DefaultHistoryTTL,
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			GRPCPort:          DefaultGRPCPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}

	switch profile {
	case ProfileDesktop:
		cfg.Alerts.Cooldown = 60 * time.Second
		cfg.Alerts.MinSessionTime = 30 * time.Second
	case ProfileWeb:
		cfg.Alerts.Cooldown = 5 * time.Second
		cfg.Alerts.MinSessionTime = 0
	default:
		return nil, fmt.Errorf("unknown profile %q: want desktop|web", profile)
	}
	return cfg, nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if err := cfg.Session().Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if cfg.Alerts.HistoryTTL < 0 {
		return fmt.Errorf("alerts.history_ttl must not be negative")
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [0, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}
