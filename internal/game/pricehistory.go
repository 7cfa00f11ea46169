package game

import "time"

// HistoryCap bounds the buffer to the most recent samples.
const HistoryCap = 200

// minEstimateBlocks suppresses the seconds-per-block estimate until
// enough blocks have passed to make it meaningful.
const minEstimateBlocks = 10

// PricePoint is one observed (block height, price) sample.
type PricePoint struct {
	BlockHeight uint64    `json:"block_height"`
	Price       uint64    `json:"price"`
	ObservedAt  time.Time `json:"observed_at"`
}

// History is a bounded, block-height-ordered sequence of price samples.
// It also tracks when the first sample after a reset was observed, which
// anchors the empirical seconds-per-block rate.
type History struct {
	points []PricePoint

	tracking   bool
	firstBlock uint64
	firstAt    time.Time

	now func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

// Append records a sample observed now. A height at or below the latest
// buffered one is dropped: appends only happen on genuinely new
// price-update events. The buffer keeps the most recent HistoryCap points.
func (h *History) Append(blockHeight, price uint64) {
	if n := len(h.points); n > 0 && blockHeight <= h.points[n-1].BlockHeight {
		return
	}
	at := h.now()
	if !h.tracking {
		h.tracking = true
		h.firstBlock = blockHeight
		h.firstAt = at
	}
	h.points = append(h.points, PricePoint{BlockHeight: blockHeight, Price: price, ObservedAt: at})
	if len(h.points) > HistoryCap {
		h.points = h.points[len(h.points)-HistoryCap:]
	}
}

// Snapshot returns an immutable copy ordered by block height.
func (h *History) Snapshot() []PricePoint {
	out := make([]PricePoint, len(h.points))
	copy(out, h.points)
	return out
}

func (h *History) Len() int { return len(h.points) }

// Last returns the most recent sample, if any.
func (h *History) Last() (PricePoint, bool) {
	if len(h.points) == 0 {
		return PricePoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// Reset clears the buffer and the rate-tracking anchor. Invoked on the
// session-start transition.
func (h *History) Reset() {
	h.points = nil
	h.tracking = false
	h.firstBlock = 0
	h.firstAt = time.Time{}
}

// EstimateRemaining estimates wall-clock time until endHeight from the
// empirical seconds-per-block rate over the tracked window. The estimate
// is unknown until at least minEstimateBlocks blocks have passed since
// tracking began; early samples are too noisy.
func (h *History) EstimateRemaining(currentHeight, endHeight uint64) (time.Duration, bool) {
	last, ok := h.Last()
	if !h.tracking || !ok {
		return 0, false
	}
	if last.BlockHeight < h.firstBlock+minEstimateBlocks {
		return 0, false
	}
	blocksPassed := last.BlockHeight - h.firstBlock
	elapsed := last.ObservedAt.Sub(h.firstAt)
	if elapsed <= 0 {
		return 0, false
	}
	perBlock := elapsed / time.Duration(blocksPassed)
	if currentHeight >= endHeight {
		return 0, true
	}
	return perBlock * time.Duration(endHeight-currentHeight), true
}
