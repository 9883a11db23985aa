package domain

import "sync"

// Inventory is the signed YES-contract position for one market plus its
// realized P&L accumulator. Positive = net long YES; negative = net
// short YES (equivalently long NO). Mutated only by confirmed fills.
type Inventory struct {
	mu sync.RWMutex

	Contracts   int
	RealizedPnL float64

	avgEntryPrice float64 // weighted-average entry price of the open position
	lastFillIdx   map[string]int64
}

// NewInventory returns a zeroed inventory tracker.
func NewInventory() *Inventory {
	return &Inventory{lastFillIdx: make(map[string]int64)}
}

// Fill describes one exchange fill event applied to inventory.
type Fill struct {
	OrderID   string
	Side      OrderSide
	Price     float64
	Size      int
	FillIndex int64
}

// ApplyFill updates inventory and realized P&L for a single fill. It is
// idempotent on (OrderID, FillIndex): a retried fill with an index not
// greater than the last one seen for that order is a no-op, satisfying
// the stream's at-least-once delivery guarantee.
func (inv *Inventory) ApplyFill(f Fill) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	last, seen := inv.lastFillIdx[f.OrderID]
	if seen && f.FillIndex <= last {
		return
	}
	inv.lastFillIdx[f.OrderID] = f.FillIndex

	signedSize := f.Size
	if f.Side == SideSell {
		signedSize = -signedSize
	}

	if sameSign(inv.Contracts, signedSize) || inv.Contracts == 0 {
		// Adding to (or opening) a position: roll the weighted-average entry.
		totalBefore := absInt(inv.Contracts)
		totalAfter := totalBefore + absInt(signedSize)
		if totalAfter > 0 {
			inv.avgEntryPrice = (inv.avgEntryPrice*float64(totalBefore) + f.Price*float64(absInt(signedSize))) / float64(totalAfter)
		}
		inv.Contracts += signedSize
		return
	}

	// Closing or flipping: realize P&L on the closed portion against the
	// weighted-average entry price.
	closing := minInt(absInt(signedSize), absInt(inv.Contracts))
	direction := 1.0
	if inv.Contracts < 0 {
		direction = -1.0
	}
	inv.RealizedPnL += direction * float64(closing) * (f.Price - inv.avgEntryPrice)

	inv.Contracts += signedSize
	if absInt(signedSize) > closing {
		// Flipped through zero: the remainder opens a new position at f.Price.
		inv.avgEntryPrice = f.Price
	}
	if inv.Contracts == 0 {
		inv.avgEntryPrice = 0
	}
}

// Snapshot reads (contracts, realized P&L) atomically.
func (inv *Inventory) Snapshot() (int, float64) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.Contracts, inv.RealizedPnL
}

func sameSign(a, b int) bool {
	if a == 0 || b == 0 {
		return true
	}
	return (a > 0) == (b > 0)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
