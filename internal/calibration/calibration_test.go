package calibration

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestObserve_FillsThenCompletes(t *testing.T) {
	c := New(DefaultBaselineFrames)

	var sum float64
	for i := 0; i < DefaultBaselineFrames-1; i++ {
		v := 0.25 + float64(i)*0.001
		sum += v
		st := c.Observe(v)
		if st.Phase != PhaseFilling {
			t.Fatalf("sample %d: phase = %q, want filling", i+1, st.Phase)
		}
		if st.Samples != i+1 {
			t.Fatalf("sample %d: samples = %d", i+1, st.Samples)
		}
		if st.Target != DefaultBaselineFrames {
			t.Fatalf("target = %d, want %d", st.Target, DefaultBaselineFrames)
		}
	}

	last := 0.25 + float64(DefaultBaselineFrames-1)*0.001
	sum += last
	st := c.Observe(last)
	if !st.Complete() {
		t.Fatalf("30th sample: phase = %q, want complete", st.Phase)
	}
	want := sum / DefaultBaselineFrames
	if !almostEqual(st.Baseline, want, 1e-12) {
		t.Errorf("baseline = %v, want %v", st.Baseline, want)
	}
}

func TestObserve_BaselineFrozenAfterComplete(t *testing.T) {
	c := New(3)
	c.Observe(0.3)
	c.Observe(0.3)
	st := c.Observe(0.3)
	if !st.Complete() {
		t.Fatal("expected complete after 3 samples")
	}

	st = c.Observe(0.01)
	if !almostEqual(st.Baseline, 0.3, 1e-12) {
		t.Errorf("baseline changed after completion: %v", st.Baseline)
	}
	if st.Samples != 3 {
		t.Errorf("samples = %d after completion, want 3", st.Samples)
	}
}

func TestObserve_InfinitePropagates(t *testing.T) {
	c := New(3)
	c.Observe(0.3)
	c.Observe(math.Inf(1))
	st := c.Observe(0.3)
	if !math.IsInf(st.Baseline, 1) {
		t.Errorf("baseline = %v, want +Inf", st.Baseline)
	}
}

func TestReset(t *testing.T) {
	c := New(2)
	c.Observe(0.3)
	c.Observe(0.3)
	c.Reset()

	st := c.Status()
	if st.Phase != PhaseFilling || st.Samples != 0 {
		t.Errorf("after reset: %+v, want filling/0", st)
	}
	if _, ok := c.Baseline(); ok {
		t.Error("Baseline() ok = true after reset")
	}

	c.Observe(0.2)
	st = c.Observe(0.4)
	if !st.Complete() || !almostEqual(st.Baseline, 0.3, 1e-12) {
		t.Errorf("recalibrated status = %+v, want complete/0.3", st)
	}
}

func TestNew_ClampsTarget(t *testing.T) {
	c := New(0)
	if st := c.Observe(0.3); !st.Complete() {
		t.Errorf("target 0 should complete on first sample, got %+v", st)
	}
}
