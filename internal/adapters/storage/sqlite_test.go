package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

func TestSaveAndLoadBreakerState(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	loaded, err := store.LoadBreakerState(ctx)
	require.NoError(t, err)
	require.False(t, loaded.IsOpen)

	want := domain.State{IsOpen: true, TripReason: "pnl_threshold", TripTS: time.Unix(1000, 0).UTC()}
	require.NoError(t, store.SaveBreakerState(ctx, want))

	got, err := store.LoadBreakerState(ctx)
	require.NoError(t, err)
	require.True(t, got.IsOpen)
	require.Equal(t, "pnl_threshold", got.TripReason)
}

func TestSaveBreakerStateOverwritesPreviousRow(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveBreakerState(ctx, domain.State{IsOpen: true, TripReason: "a"}))
	require.NoError(t, store.SaveBreakerState(ctx, domain.State{IsOpen: false, TripReason: ""}))

	got, err := store.LoadBreakerState(ctx)
	require.NoError(t, err)
	require.False(t, got.IsOpen)
	require.Equal(t, "", got.TripReason)
}

func TestRecordFillDoesNotError(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	store.RecordFill(context.Background(), "PRES-2028", domain.Fill{
		OrderID: "o1", Side: domain.SideBuy, Price: 0.4, Size: 10, FillIndex: 1,
	})
}

func TestRecordInventoryChangePersists(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	store.RecordInventoryChange(context.Background(), "PRES-2028", 10, 1.5)

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM inventory_events WHERE ticker = ?`, "PRES-2028").Scan(&count))
	require.Equal(t, 1, count)
}

func TestRecordAPIErrorPersists(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	store.RecordAPIError(context.Background(), domain.ErrTransportTimeout)

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM api_errors`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRecordQuoteLatencyPersists(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	store.RecordQuoteLatency(context.Background(), "PRES-2028", 42.5)

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM quote_latency_events WHERE ticker = ?`, "PRES-2028").Scan(&count))
	require.Equal(t, 1, count)
}

func TestWriteAlertPersists(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.WriteAlert(context.Background(), ports.Alert{
		Level: ports.AlertCritical, Ticker: "PRES-2028", Message: "circuit breaker tripped: pnl_threshold",
	})
	require.NoError(t, err)
}
