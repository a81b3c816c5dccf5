// Package api implements the JSON HTTP API for the blink monitor.
//
// Routes, mounted under /api/v1:
//
//	GET  /status             current session summary, last frame and diagnostics
//	GET  /alerts             recent alert records, newest first
//	POST /frames             submit one frame (eye landmarks or a face mesh)
//	POST /calibration/reset  discard the baseline and recalibrate
//	POST /session/reset      clear blink history under a new session
//	POST /alert/dismiss      acknowledge the active alert
//	PUT  /threshold          {"value": n}; returns the clamped value applied
//
// The POST and PUT routes sit behind the API key guard.
// Every response is application/json; errors are {"error": "..."}.
package api
