package expdecay

import (
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTrackerForTest(hl time.Duration) (*Tracker, *fakeClock) {
	fc := &fakeClock{now: time.Unix(0, 0).UTC()}
	tr := New(hl)
	tr.now = fc.Now
	return tr, fc
}

func almostEq(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got=%g want=%g (eps=%g)", got, want, eps)
	}
}

func TestIncAndScore_AccumulatesImmediately(t *testing.T) {
	tr, _ := newTrackerForTest(time.Minute)

	cell := "85e35e73fffffff"
	tr.Inc(cell)
	almostEq(t, tr.Score(cell), 1.0, 1e-9)
	tr.Inc(cell)
	almostEq(t, tr.Score(cell), 2.0, 1e-9)
}

func TestHalfLife_DecaysByHalf(t *testing.T) {
	hl := 2 * time.Second
	tr, fc := newTrackerForTest(hl)

	cell := "85e35e73fffffff"
	tr.Inc(cell)

	fc.Add(hl)
	almostEq(t, tr.Score(cell), 0.5, 1e-6)
	fc.Add(hl)
	almostEq(t, tr.Score(cell), 0.25, 1e-6)
}

func TestReset_OnlySelectedCells(t *testing.T) {
	tr, _ := newTrackerForTest(30 * time.Second)

	tr.Inc("cell-a")
	tr.Inc("cell-b")

	tr.Reset("cell-a")

	if got := tr.Score("cell-a"); got != 0 {
		t.Fatalf("reset failed: got %g want 0", got)
	}
	if got := tr.Score("cell-b"); got <= 0 {
		t.Fatalf("unexpected reset of cell-b: got %g", got)
	}
}

func TestConcurrency_ManyIncSameCell(t *testing.T) {
	tr, _ := newTrackerForTest(time.Minute)

	const n = 128
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			tr.Inc("hot-region")
			wg.Done()
		}()
	}
	wg.Wait()

	almostEq(t, tr.Score("hot-region"), n, 1e-9)
}
