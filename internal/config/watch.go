package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// KeyLowBlinkThreshold is the only setting a running process applies live.
const KeyLowBlinkThreshold = "alerts.low_blink_threshold"

// Change describes one reload that altered the effective configuration.
type Change struct {
	Config *Config

	// Keys lists the changed settings as dotted YAML paths.
	Keys []string
}

// Has reports whether key is among the changed settings.
func (c Change) Has(key string) bool {
	return slices.Contains(c.Keys, key)
}

// RestartRequired returns the changed settings that only take effect on the
// next start.
func (c Change) RestartRequired() []string {
	var out []string
	for _, k := range c.Keys {
		if k != KeyLowBlinkThreshold {
			out = append(out, k)
		}
	}
	return out
}

// Diff returns the dotted YAML paths whose values differ between prev and
// next, in file order.
func Diff(prev, next *Config) []string {
	var keys []string
	add := func(changed bool, key string) {
		if changed {
			keys = append(keys, key)
		}
	}

	add(prev.Profile != next.Profile, "profile")

	pd, nd := prev.Detector, next.Detector
	add(pd.BaselineFrames != nd.BaselineFrames, "detector.baseline_frames")
	add(pd.EARThresholdRatio != nd.EARThresholdRatio, "detector.ear_threshold_ratio")
	add(pd.MinBlinkFrames != nd.MinBlinkFrames, "detector.min_blink_frames")
	add(pd.RollingWindow != nd.RollingWindow, "detector.rolling_window")

	pa, na := prev.Alerts, next.Alerts
	add(pa.LowBlinkThreshold != na.LowBlinkThreshold, KeyLowBlinkThreshold)
	add(pa.Cooldown != na.Cooldown, "alerts.cooldown")
	add(pa.MinSessionTime != na.MinSessionTime, "alerts.min_session_time")
	add(pa.MinBlinksForAlert != na.MinBlinksForAlert, "alerts.min_blinks_for_alert")
	add(pa.HistoryTTL != na.HistoryTTL, "alerts.history_ttl")
	add(!slices.Equal(pa.Webhooks, na.Webhooks), "alerts.webhooks")

	ps, ns := prev.Server, next.Server
	add(ps.HTTPPort != ns.HTTPPort, "server.http_port")
	add(ps.GRPCPort != ns.GRPCPort, "server.grpc_port")
	add(ps.BroadcastInterval != ns.BroadcastInterval, "server.broadcast_interval")
	add(ps.Auth != ns.Auth, "server.auth")

	add(prev.Log.Level != next.Log.Level, "log.level")
	add(prev.Log.Format != next.Log.Format, "log.format")
	add(prev.Source.Path != next.Source.Path, "source.path")
	return keys
}

// Watch reloads path whenever it is written or replaced and calls onChange
// with the settings that differ from the configuration in effect, starting
// from current. Reloads that fail to parse or validate, and reloads that
// change nothing, are logged and skipped. Watch runs until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// save by renaming a temporary file over path are still seen.
func Watch(ctx context.Context, path string, current *Config, onChange func(Change)) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	target := filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			next, err := Load(path)
			if err != nil {
				slog.Error("config: reload rejected, keeping current settings",
					"path", path, "err", err)
				continue
			}
			keys := Diff(current, next)
			if len(keys) == 0 {
				slog.Debug("config: reload changed nothing", "path", path)
				continue
			}
			current = next
			slog.Info("config: reloaded", "path", path, "changed", keys)
			onChange(Change{Config: next, Keys: keys})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
