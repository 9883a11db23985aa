package domain

import (
	"sync"
	"time"
)

// Market is one tracked binary-outcome exchange market.
type Market struct {
	Ticker     string
	TickSize   float64 // fixed at 0.01; carried for clarity at call sites
	YesCloseTS time.Time
	LIPTarget  float64 // contracts resting at best required to qualify for the rebate
}

// HoursToExpiry returns hours until YesCloseTS, floored at 0.
func (m Market) HoursToExpiry(now time.Time) float64 {
	h := m.YesCloseTS.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Expired reports whether the market's close time has passed.
func (m Market) Expired(now time.Time) bool {
	return !m.YesCloseTS.After(now)
}

// MarketState is the per-market lifecycle state of the reconciliation
// state machine (C7).
type MarketState string

const (
	StateIdle     MarketState = "idle"
	StateTracked  MarketState = "tracked"
	StateQuoting  MarketState = "quoting"
	StateBlocked  MarketState = "blocked"
	StateExiting  MarketState = "exiting"
	StateClosed   MarketState = "closed"
)

// TrackedMarket is everything the scheduler owns for one market under
// management: its Market metadata, a reference to the shared OrderBook
// and Inventory (which carry their own internal locking), the live
// orders the state machine placed, and bookkeeping for cooldowns.
//
// The tick loop (Scheduler.reconcileMarket) and the per-ticker stream
// goroutine (applyBookUpdate, applyFill) both mutate State, LiveBuy,
// LiveSell, LastTouch, and the rest of this struct's own fields, so
// every access to them must hold mu. Book and Inventory are exempt:
// they guard themselves.
type TrackedMarket struct {
	Market Market
	Book   *OrderBook
	Inv    *Inventory

	mu sync.Mutex

	State MarketState

	LiveBuy  *LiveOrder
	LiveSell *LiveOrder

	LastTouch            Touch
	LastImprovementTS    time.Time
	LastReactiveUpdateTS time.Time
	ImprovedSinceTouch   bool

	// FirstFillSeen gates the first-phase buy-size throttle: newly admitted
	// markets hard-cap size until a first fill's markout has been observed.
	FirstFillSeen bool

	CashOutSubmitted bool

	// MarkoutEMA, EdgeBonus, and WidthBonus are the toxic-flow defense's
	// running state, updated by evaluateMarkout once a fill's markout
	// horizon elapses (see MarkoutConfig).
	MarkoutEMA float64
	EdgeBonus  float64
	WidthBonus float64
}

// Lock acquires the market's mutex. Callers must pair with Unlock.
func (tm *TrackedMarket) Lock() { tm.mu.Lock() }

// Unlock releases the market's mutex.
func (tm *TrackedMarket) Unlock() { tm.mu.Unlock() }

// HasLiveOrder reports whether a live order exists on the given side.
// Callers that already hold tm's lock must read LiveBuy/LiveSell
// directly instead, since this method is not reentrant.
func (tm *TrackedMarket) HasLiveOrder(side OrderSide) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if side == SideBuy {
		return tm.LiveBuy != nil
	}
	return tm.LiveSell != nil
}
