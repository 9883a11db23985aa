package domain

import (
	"sync"
	"time"
)

// CircuitBreakerConfig mirrors the circuit.* configuration keys.
type CircuitBreakerConfig struct {
	MaxConsecutiveErrors  int
	PnLThreshold          float64
	MaxInventoryImbalance float64
}

// DefaultCircuitBreakerConfig matches spec.md §6's defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxConsecutiveErrors:  10,
		PnLThreshold:          -100,
		MaxInventoryImbalance: 0.9,
	}
}

// State is the persisted snapshot, written through the onTrip callback
// on every trip. Reset has no callback and does not write it.
type State struct {
	IsOpen     bool      `json:"is_open"`
	TripReason string    `json:"trip_reason"`
	TripTS     time.Time `json:"trip_ts"`
}

// CircuitBreaker is a single atomic open/closed flag plus a trip reason,
// checked by every component before it initiates a REST call. Unlike a
// cooldown-based breaker, it only clears on an explicit Reset — resuming
// trading after a trip requires a restart or operator action, never a
// timer.
type CircuitBreaker struct {
	mu sync.Mutex

	open              bool
	reason            string
	trippedAt         time.Time
	consecutiveErrors int

	onTrip func(State)
}

// NewCircuitBreaker returns a closed breaker. onTrip, if non-nil, is
// invoked synchronously on every trip so the caller can persist State
// and log once, per §7's "persisted and logged once at trip".
func NewCircuitBreaker(onTrip func(State)) *CircuitBreaker {
	return &CircuitBreaker{onTrip: onTrip}
}

// IsOpen reports whether placements are currently forbidden.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// RecordError classifies err's kind and either trips immediately or
// increments the consecutive-error counter, tripping once the configured
// threshold is reached.
func (cb *CircuitBreaker) RecordError(kind ErrorKind, cfg CircuitBreakerConfig, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.open {
		return
	}

	if kind.TripsBreakerImmediately() {
		cb.trip(kind.String(), now)
		return
	}

	if kind.CountsAsConsecutiveError() {
		cb.consecutiveErrors++
		if cb.consecutiveErrors >= cfg.MaxConsecutiveErrors {
			cb.trip("consecutive_api_errors", now)
		}
	}
}

// RecordSuccess resets the consecutive-error counter, per §7's "resets
// on the next successful call".
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveErrors = 0
}

// CheckPnL trips the breaker if realized P&L has fallen below threshold.
func (cb *CircuitBreaker) CheckPnL(realizedPnL float64, cfg CircuitBreakerConfig, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.open {
		return
	}
	if realizedPnL < cfg.PnLThreshold {
		cb.trip("pnl_threshold", now)
	}
}

// CheckInventoryImbalance trips the breaker if |netInventory|/maxPosition
// exceeds the configured threshold. Called every 60s by the scheduler,
// excluding resolved markets (§4.11 step 5).
func (cb *CircuitBreaker) CheckInventoryImbalance(netInventory, maxPosition int, cfg CircuitBreakerConfig, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.open || maxPosition <= 0 {
		return
	}
	imbalance := float64(absInt(netInventory)) / float64(maxPosition)
	if imbalance > cfg.MaxInventoryImbalance {
		cb.trip("inventory_imbalance", now)
	}
}

func (cb *CircuitBreaker) trip(reason string, now time.Time) {
	cb.open = true
	cb.reason = reason
	cb.trippedAt = now
	if cb.onTrip != nil {
		cb.onTrip(State{IsOpen: true, TripReason: reason, TripTS: now})
	}
}

// RestoreOpen re-opens the breaker from previously persisted state
// (process restart with a prior trip still on record), preserving the
// original reason and trip time rather than synthesizing a new one.
func (cb *CircuitBreaker) RestoreOpen(reason string, trippedAt time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = true
	cb.reason = reason
	cb.trippedAt = trippedAt
}

// Reset manually closes the breaker. There is no time-based auto-reset:
// this must be called explicitly (operator action or process restart
// re-reading persisted state as closed).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = false
	cb.reason = ""
	cb.consecutiveErrors = 0
}

// Snapshot returns the current persisted-shape state.
func (cb *CircuitBreaker) Snapshot() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return State{IsOpen: cb.open, TripReason: cb.reason, TripTS: cb.trippedAt}
}
