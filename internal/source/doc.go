// Package source reads eye-landmark frames from a newline-delimited JSON feed
// produced by an external landmark detector.
//
// Each non-blank line is one frame in either form:
//
//	{"left_eye":[{"x":..,"y":..} ×6],"right_eye":[..],"timestamp_ms":..}
//	{"landmarks":[{"x":..,"y":..} ×468],"width":640,"height":480,"timestamp_ms":..}
//
// The first form carries pixel coordinates already in eye order. The second
// is a raw normalized face mesh; eyes are extracted and scaled with
// geometry.FrameFromMesh. Lines that are neither are reported as ErrMalformed
// and skipped by Run.
package source
