// Package geometry turns eye landmarks into the eye aspect ratio (EAR).
//
// EAR = (|p1-p5| + |p2-p4|) / (2·|p0-p3|) for the six landmarks of one eye in
// the fixed order outer corner, upper lid ×2, inner corner, lower lid ×2.
// The ratio falls towards zero as the lid closes.
//
// The functions here are total: a degenerate sample (zero eye width, wrong
// landmark count, non-finite coordinates) yields +Inf or NaN instead of an
// error. Downstream code treats any non-finite EAR as an open eye.
package geometry
