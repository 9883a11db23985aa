package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/domain"
)

func TestSnapshotCountsEvents(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	r.RecordOrderSent(ctx, "PRES-2028", domain.SideBuy, 0.5, 10)
	r.RecordOrderAcknowledged(ctx, "PRES-2028", "o1")
	r.RecordOrderRejected(ctx, "PRES-2028", "insufficient_balance")
	r.RecordOrderCanceled(ctx, "PRES-2028", "o1")
	r.RecordFill(ctx, "PRES-2028", domain.Fill{OrderID: "o1", Side: domain.SideBuy, Price: 0.5, Size: 10, FillIndex: 1})
	r.RecordAPIError(ctx, domain.ErrRateLimited)

	snap := r.Snapshot()
	require.Equal(t, 1, snap.OrdersSent)
	require.Equal(t, 1, snap.OrdersAcked)
	require.Equal(t, 1, snap.OrdersRejected)
	require.Equal(t, 1, snap.OrdersCanceled)
	require.Equal(t, 1, snap.FillCount)
	require.Equal(t, 1, snap.APIErrorCount)
}

func TestRecordDelegatesToSink(t *testing.T) {
	sink := &stubSink{}
	r := New(sink)
	r.RecordFill(context.Background(), "PRES-2028", domain.Fill{OrderID: "o1", Side: domain.SideBuy, Price: 0.5, Size: 10, FillIndex: 1})
	require.Equal(t, 1, sink.fills)
}

type stubSink struct{ fills int }

func (s *stubSink) RecordOrderSent(context.Context, string, domain.OrderSide, float64, int) {}
func (s *stubSink) RecordOrderAcknowledged(context.Context, string, string)                 {}
func (s *stubSink) RecordOrderRejected(context.Context, string, string)                     {}
func (s *stubSink) RecordOrderCanceled(context.Context, string, string)                     {}
func (s *stubSink) RecordFill(context.Context, string, domain.Fill)                         { s.fills++ }
func (s *stubSink) RecordInventoryChange(context.Context, string, int, float64)             {}
func (s *stubSink) RecordAPIError(context.Context, domain.ErrorKind)                        {}
func (s *stubSink) RecordQuoteLatency(context.Context, string, float64)                     {}
