package ports

import (
	"context"

	"github.com/alejandrodnm/polybot/internal/domain"
)

// BreakerStorage persists the circuit breaker's {is_open, trip_reason,
// trip_ts} object (§6's "Persisted state"); the scheduler saves it when
// the breaker trips, not when it is reset.
type BreakerStorage interface {
	SaveBreakerState(ctx context.Context, state domain.State) error
	LoadBreakerState(ctx context.Context) (domain.State, error)
}

// AlertSink accepts alert records for durable storage (append-only),
// independent of whatever is also printed to the console.
type AlertSink interface {
	WriteAlert(ctx context.Context, a Alert) error
}

// Alert mirrors the source's AlertManager record shape: a leveled,
// timestamped, optionally ticker-scoped message.
type Alert struct {
	Level   AlertLevel
	Ticker  string
	Message string
}

type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertWarning:
		return "warning"
	case AlertCritical:
		return "critical"
	default:
		return "info"
	}
}

// MetricsSink accepts structured event records for durable export,
// grounded on the source's MetricsTracker.
type MetricsSink interface {
	RecordOrderSent(ctx context.Context, ticker string, side domain.OrderSide, price float64, size int)
	RecordOrderAcknowledged(ctx context.Context, ticker, orderID string)
	RecordOrderRejected(ctx context.Context, ticker, reason string)
	RecordOrderCanceled(ctx context.Context, ticker, orderID string)
	RecordFill(ctx context.Context, ticker string, f domain.Fill)
	RecordInventoryChange(ctx context.Context, ticker string, contracts int, realizedPnL float64)
	RecordAPIError(ctx context.Context, kind domain.ErrorKind)
	RecordQuoteLatency(ctx context.Context, ticker string, latencyMs float64)
}
