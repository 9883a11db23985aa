package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsOnConsecutiveErrors(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := CircuitBreakerConfig{MaxConsecutiveErrors: 3, PnLThreshold: -100, MaxInventoryImbalance: 0.9}
	now := time.Unix(0, 0)

	cb.RecordError(ErrTransportTimeout, cfg, now)
	cb.RecordError(ErrTransportTimeout, cfg, now)
	require.False(t, cb.IsOpen())
	cb.RecordError(ErrTransportTimeout, cfg, now)
	require.True(t, cb.IsOpen())
	require.Equal(t, "consecutive_api_errors", cb.Snapshot().TripReason)
}

func TestCircuitBreakerSuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := CircuitBreakerConfig{MaxConsecutiveErrors: 2, PnLThreshold: -100, MaxInventoryImbalance: 0.9}
	now := time.Unix(0, 0)

	cb.RecordError(ErrTransportTimeout, cfg, now)
	cb.RecordSuccess()
	cb.RecordError(ErrTransportTimeout, cfg, now)
	require.False(t, cb.IsOpen())
}

func TestCircuitBreakerTripsImmediatelyOnAuthExpired(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := DefaultCircuitBreakerConfig()
	cb.RecordError(ErrAuthExpired, cfg, time.Unix(0, 0))
	require.True(t, cb.IsOpen())
	require.Equal(t, "auth_expired", cb.Snapshot().TripReason)
}

func TestCircuitBreakerOrderRejectedDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := DefaultCircuitBreakerConfig()
	for i := 0; i < 50; i++ {
		cb.RecordError(ErrOrderRejected, cfg, time.Unix(0, 0))
	}
	require.False(t, cb.IsOpen())
}

func TestCircuitBreakerTripsOnPnLThreshold(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := DefaultCircuitBreakerConfig()
	cb.CheckPnL(-150, cfg, time.Unix(0, 0))
	require.True(t, cb.IsOpen())
	require.Equal(t, "pnl_threshold", cb.Snapshot().TripReason)
}

func TestCircuitBreakerTripsOnInventoryImbalance(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := DefaultCircuitBreakerConfig()
	cb.CheckInventoryImbalance(95, 100, cfg, time.Unix(0, 0))
	require.True(t, cb.IsOpen())
	require.Equal(t, "inventory_imbalance", cb.Snapshot().TripReason)
}

func TestCircuitBreakerDoesNotAutoReset(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	cfg := DefaultCircuitBreakerConfig()
	cb.RecordError(ErrAuthExpired, cfg, time.Unix(0, 0))
	require.True(t, cb.IsOpen())
	// No amount of time passing clears it without an explicit Reset.
	cb.RecordError(ErrTransportTimeout, cfg, time.Unix(100000, 0))
	require.True(t, cb.IsOpen())
	cb.Reset()
	require.False(t, cb.IsOpen())
}

func TestCircuitBreakerRestoreOpenPreservesOriginalReason(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	trippedAt := time.Unix(500, 0)
	cb.RestoreOpen("pnl_threshold", trippedAt)

	require.True(t, cb.IsOpen())
	snap := cb.Snapshot()
	require.Equal(t, "pnl_threshold", snap.TripReason)
	require.Equal(t, trippedAt, snap.TripTS)
}

func TestCircuitBreakerOnTripCallback(t *testing.T) {
	var captured State
	cb := NewCircuitBreaker(func(s State) { captured = s })
	cfg := DefaultCircuitBreakerConfig()
	cb.RecordError(ErrInternal, cfg, time.Unix(42, 0))
	require.True(t, captured.IsOpen)
	require.Equal(t, "internal", captured.TripReason)
}
