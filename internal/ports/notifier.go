package ports

import "context"

// MarketDashboardRow is one line of the console dashboard: a tracked
// market's current state, touch, inventory, and risk reading.
type MarketDashboardRow struct {
	Ticker      string
	State       string
	BestBid     float64
	BestAsk     float64
	Inventory   int
	RealizedPnL float64
	RiskScore   float64
	RiskBucket  string
}

// Notifier renders the scheduler's per-tick state to an operator-facing
// surface. The console implementation prints a formatted table; others
// could push to a dashboard service.
type Notifier interface {
	NotifyTick(ctx context.Context, rows []MarketDashboardRow) error
	NotifyBreakerTrip(ctx context.Context, reason string) error
}
