package rate

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCurrentRate_RampsWithSession(t *testing.T) {
	e := NewEstimator(4 * time.Minute)
	e.SetStart(0)
	for _, ts := range []int64{0, 10000, 20000} {
		e.OnBlinkCommitted(ts)
	}

	// elapsed = 30s = 0.5 min, 3 blinks -> 6/min
	if got := e.CurrentRate(30000); !almostEqual(got, 6.0, 1e-9) {
		t.Errorf("CurrentRate = %v, want 6.0", got)
	}
}

func TestCurrentRate_Idempotent(t *testing.T) {
	e := NewEstimator(DefaultWindow)
	e.SetStart(0)
	e.OnBlinkCommitted(5000)
	e.OnBlinkCommitted(9000)

	a := e.CurrentRate(60000)
	b := e.CurrentRate(60000)
	if a != b {
		t.Errorf("CurrentRate not idempotent: %v then %v", a, b)
	}
	if len(e.stamps) != 2 {
		t.Errorf("stored = %d after reads, want 2", len(e.stamps))
	}
}

func TestCurrentRate_Empty(t *testing.T) {
	e := NewEstimator(DefaultWindow)
	e.SetStart(0)
	if got := e.CurrentRate(120000); got != 0 {
		t.Errorf("CurrentRate with no blinks = %v, want 0", got)
	}
}

func TestCurrentRate_ElapsedCappedAtWindow(t *testing.T) {
	e := NewEstimator(2 * time.Minute)
	e.SetStart(0)
	// 10 blinks within the last two minutes of a ten minute session.
	for i := int64(0); i < 10; i++ {
		e.OnBlinkCommitted(500000 + i*1000)
	}
	// elapsed = min(600s, 120s) = 2 min -> 5/min
	if got := e.CurrentRate(600000); !almostEqual(got, 5.0, 1e-9) {
		t.Errorf("CurrentRate = %v, want 5.0", got)
	}
}

func TestCurrentRate_FloorsElapsedAtOneSecond(t *testing.T) {
	e := NewEstimator(DefaultWindow)
	e.SetStart(1000)
	e.OnBlinkCommitted(1100)
	// elapsed = 100ms, floored to 1/60 min -> 60/min
	if got := e.CurrentRate(1100); !almostEqual(got, 60.0, 1e-9) {
		t.Errorf("CurrentRate = %v, want 60.0", got)
	}
}

func TestCurrentRate_NoStartUsesOldestRecent(t *testing.T) {
	e := NewEstimator(DefaultWindow)
	e.OnBlinkCommitted(60000)
	e.OnBlinkCommitted(90000)
	// elapsed = 120000 - 60000 = 1 min -> 2/min
	if got := e.CurrentRate(120000); !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("CurrentRate = %v, want 2.0", got)
	}
}

func TestCurrentRate_IgnoresStampsOutsideWindow(t *testing.T) {
	e := NewEstimator(1 * time.Minute)
	e.SetStart(0)
	e.OnBlinkCommitted(10000)
	e.OnBlinkCommitted(50000)
	e.OnBlinkCommitted(65000)

	// At 100000 the cutoff is 40000: two recent blinks over a 1 min divisor.
	if got := e.CurrentRate(100000); !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("CurrentRate = %v, want 2.0", got)
	}
	if got := e.RecentCount(100000); got != 2 {
		t.Errorf("RecentCount = %d, want 2", got)
	}
}

func TestOnBlinkCommitted_Prunes(t *testing.T) {
	e := NewEstimator(1 * time.Minute)
	e.OnBlinkCommitted(0)
	e.OnBlinkCommitted(30000)
	e.OnBlinkCommitted(61000) // cutoff 1000 drops ts 0

	got := e.Timestamps()
	want := []int64{30000, 61000}
	if len(got) != len(want) {
		t.Fatalf("Timestamps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Timestamps = %v, want %v", got, want)
		}
	}
}

func TestOnBlinkCommitted_KeepsBoundary(t *testing.T) {
	e := NewEstimator(1 * time.Minute)
	e.OnBlinkCommitted(0)
	e.OnBlinkCommitted(60000) // cutoff 0, ts 0 is kept (>=)
	if len(e.stamps) != 2 {
		t.Errorf("stored = %d, want 2", len(e.stamps))
	}
}

func TestClearAndStart(t *testing.T) {
	e := NewEstimator(DefaultWindow)
	e.SetStart(5)
	e.OnBlinkCommitted(10)
	e.Clear()
	if len(e.stamps) != 0 {
		t.Errorf("stored after Clear = %d", len(e.stamps))
	}
	if start, ok := e.Start(); !ok || start != 5 {
		t.Errorf("Start = %d/%v, want 5/true", start, ok)
	}
	e.ClearStart()
	if _, ok := e.Start(); ok {
		t.Error("Start ok after ClearStart")
	}
}

func TestNewEstimator_DefaultWindow(t *testing.T) {
	if got := NewEstimator(0).windowMs; got != DefaultWindow.Milliseconds() {
		t.Errorf("windowMs = %d, want %d", got, DefaultWindow.Milliseconds())
	}
}
