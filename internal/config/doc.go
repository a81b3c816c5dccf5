// Package config loads and watches the blinkwatch configuration file.
//
// Top-level types:
//   - Config{Profile, Detector, Alerts, Server, Log, Source}
//   - DetectorConfig: baseline_frames, ear_threshold_ratio, min_blink_frames,
//     rolling_window
//   - AlertsConfig: low_blink_threshold (clamped to [5,25]), cooldown,
//     min_session_time, min_blinks_for_alert, history_ttl, webhooks
//   - ServerConfig: http_port, grpc_port, broadcast_interval, auth
//
// Load(path) reads the YAML file, seeds defaults from the named profile
// ("desktop" unless the file says otherwise), overlays the file, then
// validates. Keys present in the file always win over the profile.
//
// Watch(ctx, path, onChange) uses fsnotify to pick up edits and hands the
// newly parsed Config to onChange. A file that fails to parse is logged and
// ignored.
package config
