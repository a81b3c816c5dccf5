package geometry

import (
	"math"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// PointsPerEye is the number of landmarks an EyeSample must carry.
const PointsPerEye = 6

// EAR returns the eye aspect ratio of eye.
//
// A sample with the wrong number of points or any non-finite coordinate
// returns NaN. A sample whose horizontal span is zero returns +Inf.
func EAR(eye types.EyeSample) float64 {
	if len(eye) != PointsPerEye {
		return math.NaN()
	}
	for _, p := range eye {
		if !Finite(p.X) || !Finite(p.Y) {
			return math.NaN()
		}
	}
	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	// Finite inputs can still overflow Hypot.
	if !Finite(a) || !Finite(b) || !Finite(c) {
		return math.NaN()
	}
	if c == 0 {
		return math.Inf(1)
	}
	return (a + b) / (2 * c)
}

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Below reports whether ear is a usable value strictly under threshold.
// Non-finite EARs are never below anything.
func Below(ear, threshold float64) bool {
	return Finite(ear) && ear < threshold
}

func dist(p, q types.EyePoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
