package metrics

// metrics.go — structured event recording, grounded on the source's
// MetricsTracker: every order/fill/inventory/error event is logged as a
// structured record in addition to being durably persisted. The
// durable half (counts, history) is delegated to the storage adapter's
// ports.MetricsSink implementation; this Recorder adds the logging half
// and the in-memory aggregate counters exposed through Snapshot.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

// Recorder wraps a durable ports.MetricsSink, adding structured logging
// and in-process aggregate counters.
type Recorder struct {
	sink ports.MetricsSink

	mu                sync.Mutex
	ordersSent        int
	ordersAcked       int
	ordersRejected    int
	ordersCanceled    int
	fillCount         int
	apiErrorCount     int
}

// New wraps sink. sink may be nil to log without persisting.
func New(sink ports.MetricsSink) *Recorder {
	return &Recorder{sink: sink}
}

func (r *Recorder) RecordOrderSent(ctx context.Context, ticker string, side domain.OrderSide, price float64, size int) {
	r.mu.Lock()
	r.ordersSent++
	r.mu.Unlock()
	slog.Debug("order sent", "ticker", ticker, "side", side, "price", price, "size", size)
	if r.sink != nil {
		r.sink.RecordOrderSent(ctx, ticker, side, price, size)
	}
}

func (r *Recorder) RecordOrderAcknowledged(ctx context.Context, ticker, orderID string) {
	r.mu.Lock()
	r.ordersAcked++
	r.mu.Unlock()
	slog.Debug("order acknowledged", "ticker", ticker, "order_id", orderID)
	if r.sink != nil {
		r.sink.RecordOrderAcknowledged(ctx, ticker, orderID)
	}
}

func (r *Recorder) RecordOrderRejected(ctx context.Context, ticker, reason string) {
	r.mu.Lock()
	r.ordersRejected++
	r.mu.Unlock()
	slog.Warn("order rejected", "ticker", ticker, "reason", reason)
	if r.sink != nil {
		r.sink.RecordOrderRejected(ctx, ticker, reason)
	}
}

func (r *Recorder) RecordOrderCanceled(ctx context.Context, ticker, orderID string) {
	r.mu.Lock()
	r.ordersCanceled++
	r.mu.Unlock()
	slog.Debug("order canceled", "ticker", ticker, "order_id", orderID)
	if r.sink != nil {
		r.sink.RecordOrderCanceled(ctx, ticker, orderID)
	}
}

func (r *Recorder) RecordFill(ctx context.Context, ticker string, f domain.Fill) {
	r.mu.Lock()
	r.fillCount++
	r.mu.Unlock()
	slog.Info("fill", "ticker", ticker, "side", f.Side, "price", f.Price, "size", f.Size, "fill_index", f.FillIndex)
	if r.sink != nil {
		r.sink.RecordFill(ctx, ticker, f)
	}
}

func (r *Recorder) RecordInventoryChange(ctx context.Context, ticker string, contracts int, realizedPnL float64) {
	slog.Debug("inventory changed", "ticker", ticker, "contracts", contracts, "realized_pnl", realizedPnL)
	if r.sink != nil {
		r.sink.RecordInventoryChange(ctx, ticker, contracts, realizedPnL)
	}
}

func (r *Recorder) RecordAPIError(ctx context.Context, kind domain.ErrorKind) {
	r.mu.Lock()
	r.apiErrorCount++
	r.mu.Unlock()
	slog.Warn("api error", "kind", kind)
	if r.sink != nil {
		r.sink.RecordAPIError(ctx, kind)
	}
}

func (r *Recorder) RecordQuoteLatency(ctx context.Context, ticker string, latencyMs float64) {
	slog.Debug("quote latency", "ticker", ticker, "latency_ms", latencyMs)
	if r.sink != nil {
		r.sink.RecordQuoteLatency(ctx, ticker, latencyMs)
	}
}

// Snapshot returns the in-process aggregate counters, mirroring the
// source's orders_sent/orders_acknowledged/orders_rejected counters.
type Snapshot struct {
	OrdersSent     int
	OrdersAcked    int
	OrdersRejected int
	OrdersCanceled int
	FillCount      int
	APIErrorCount  int
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		OrdersSent:     r.ordersSent,
		OrdersAcked:    r.ordersAcked,
		OrdersRejected: r.ordersRejected,
		OrdersCanceled: r.ordersCanceled,
		FillCount:      r.fillCount,
		APIErrorCount:  r.apiErrorCount,
	}
}
