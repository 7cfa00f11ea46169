package game

import (
	"testing"
	"time"
)

// fakeClock advances a fixed amount per reading.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestHistory_AppendOrderedAndCapped(t *testing.T) {
	h := NewHistory()
	for i := uint64(0); i < 500; i++ {
		h.Append(100+i, 50)
	}
	pts := h.Snapshot()
	if len(pts) != HistoryCap {
		t.Fatalf("len=%d want %d", len(pts), HistoryCap)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].BlockHeight <= pts[i-1].BlockHeight {
			t.Fatalf("not ordered at %d: %d then %d", i, pts[i-1].BlockHeight, pts[i].BlockHeight)
		}
	}
	if pts[len(pts)-1].BlockHeight != 599 {
		t.Fatalf("oldest entries should be dropped first, last=%d", pts[len(pts)-1].BlockHeight)
	}
}

func TestHistory_RejectsStaleAndDuplicateHeights(t *testing.T) {
	h := NewHistory()
	h.Append(100, 50)
	h.Append(100, 51) // duplicate height
	h.Append(99, 52)  // stale height
	if h.Len() != 1 {
		t.Fatalf("len=%d want 1", h.Len())
	}
	last, _ := h.Last()
	if last.Price != 50 {
		t.Fatalf("stale append overwrote the buffer: %+v", last)
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory()
	h.Append(100, 50)
	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("reset left %d points", h.Len())
	}
	// Heights below the pre-reset baseline are acceptable again.
	h.Append(10, 40)
	if h.Len() != 1 {
		t.Fatalf("append after reset failed")
	}
}

func TestHistory_EstimateSuppressedEarly(t *testing.T) {
	h := NewHistory()
	h.now = fakeClock(time.Unix(0, 0), time.Second)
	for i := uint64(0); i < minEstimateBlocks; i++ { // 9 blocks passed
		h.Append(100+i, 50)
	}
	if _, known := h.EstimateRemaining(109, 200); known {
		t.Fatalf("estimate should be unknown below %d blocks", minEstimateBlocks)
	}
}

func TestHistory_EstimateRate(t *testing.T) {
	h := NewHistory()
	h.now = fakeClock(time.Unix(0, 0), 2*time.Second)
	// 21 samples, one per call: blocks 100..120, 2s apart.
	for i := uint64(0); i <= 20; i++ {
		h.Append(100+i, 50)
	}
	rem, known := h.EstimateRemaining(120, 130)
	if !known {
		t.Fatalf("estimate should be known after 20 blocks")
	}
	if rem != 20*time.Second {
		t.Fatalf("remaining=%s want 20s", rem)
	}
}

func TestHistory_EstimateAtOrPastEnd(t *testing.T) {
	h := NewHistory()
	h.now = fakeClock(time.Unix(0, 0), time.Second)
	for i := uint64(0); i <= 20; i++ {
		h.Append(100+i, 50)
	}
	rem, known := h.EstimateRemaining(130, 130)
	if !known || rem != 0 {
		t.Fatalf("past-end estimate: rem=%s known=%v", rem, known)
	}
}

func TestHistory_EmptyEstimateUnknown(t *testing.T) {
	h := NewHistory()
	if _, known := h.EstimateRemaining(0, 100); known {
		t.Fatalf("empty history must not estimate")
	}
}
