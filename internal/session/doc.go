// Package session is the single-threaded core that turns eye-landmark frames
// into blink, rate and alert outcomes.
//
// Controller.ProcessFrame runs one frame through, in order:
//
//	geometry (EAR per eye)
//	  -> calibration while the baseline is filling
//	  -> blink detector once calibrated (adaptive threshold = baseline × ratio)
//	  -> rate estimator on each committed blink
//	  -> arbiter on every calibrated frame
//
// and returns an Outcome carrying everything a presentation layer needs.
//
// The controller never reads a clock. Session start is taken from the first
// frame after construction or after any reset, so every result is a pure
// function of the frames fed in. It is not safe for concurrent use; callers
// serialize access (see package monitor).
package session
