// Package calibration captures a per-person baseline EAR from the first frames
// of a session and freezes it.
package calibration

// DefaultBaselineFrames is the number of samples averaged into the baseline.
const DefaultBaselineFrames = 30

// Phase is the calibration progress state.
type Phase string

const (
	PhaseFilling  Phase = "filling"
	PhaseComplete Phase = "complete"
)

// Status reports calibration progress after an observation.
// Baseline is meaningful only when Phase is PhaseComplete.
type Status struct {
	Phase    Phase   `json:"phase"`
	Samples  int     `json:"samples"`
	Target   int     `json:"target"`
	Baseline float64 `json:"baseline"`
}

// Complete reports whether the baseline has been frozen.
func (s Status) Complete() bool { return s.Phase == PhaseComplete }

// Calibrator accumulates average-EAR samples until it holds target of them,
// then freezes their mean as the baseline. Samples observed after that are
// ignored until Reset.
//
// Calibrator is not safe for concurrent use.
type Calibrator struct {
	target   int
	buf      []float64
	baseline float64
	done     bool
}

// New returns a Calibrator that completes after target samples.
// A target below 1 is treated as 1.
func New(target int) *Calibrator {
	if target < 1 {
		target = 1
	}
	return &Calibrator{target: target, buf: make([]float64, 0, target)}
}

// Observe records avgEar while filling and returns the resulting status.
// Non-finite values are recorded as given and propagate into the baseline;
// callers that want a clean baseline must filter them first.
func (c *Calibrator) Observe(avgEar float64) Status {
	if c.done {
		return c.Status()
	}
	c.buf = append(c.buf, avgEar)
	if len(c.buf) == c.target {
		c.baseline = mean(c.buf)
		c.done = true
	}
	return c.Status()
}

// Status returns the current progress without observing anything.
func (c *Calibrator) Status() Status {
	s := Status{Phase: PhaseFilling, Samples: len(c.buf), Target: c.target}
	if c.done {
		s.Phase = PhaseComplete
		s.Baseline = c.baseline
	}
	return s
}

// Baseline returns the frozen baseline and whether calibration is complete.
func (c *Calibrator) Baseline() (float64, bool) {
	return c.baseline, c.done
}

// Reset discards all samples and the frozen baseline.
func (c *Calibrator) Reset() {
	c.buf = c.buf[:0]
	c.baseline = 0
	c.done = false
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
