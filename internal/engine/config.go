package engine

import (
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
)

// Config is the scheduler's tunable surface, matching the `dt`,
// `max_position`, `lip_*`, and `circuit.*` keys of the external
// configuration (§6).
type Config struct {
	Dt time.Duration

	MaxPosition          int
	PositionLimitBuffer  float64
	InventorySkewFactor  float64
	ImproveOncePerTouch  bool
	ImproveCooldown      time.Duration
	MinQuoteWidth        float64 // in price units (cents/100)
	MaxMarketsWithOrders int
	DiscoveryInterval    time.Duration
	OrderbookUpdateCooldown time.Duration

	LIPEnabled       bool
	VolRefreshInterval time.Duration
	VolWorkerCount   int
	ThinBookMinSize  float64

	CapitalBudgetFraction  float64
	BalanceRefreshInterval time.Duration

	Risk    domain.RiskConfig
	Breaker domain.CircuitBreakerConfig
	Markout domain.MarkoutConfig

	InventoryCheckInterval time.Duration
	MarkoutHorizon         time.Duration
}

// DefaultConfig matches spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		Dt:                      1 * time.Second,
		MaxPosition:             100,
		PositionLimitBuffer:     0.2,
		InventorySkewFactor:     0.01,
		ImproveOncePerTouch:     true,
		ImproveCooldown:         0,
		MinQuoteWidth:           0,
		MaxMarketsWithOrders:    20,
		DiscoveryInterval:       10 * time.Second,
		OrderbookUpdateCooldown: 500 * time.Millisecond,
		LIPEnabled:              true,
		VolRefreshInterval:      300 * time.Second,
		VolWorkerCount:          4,
		ThinBookMinSize:         5,
		CapitalBudgetFraction:   0.25,
		BalanceRefreshInterval:  30 * time.Second,
		Risk:                    domain.DefaultRiskConfig(),
		Breaker:                 domain.DefaultCircuitBreakerConfig(),
		Markout:                 domain.DefaultMarkoutConfig(),
		InventoryCheckInterval:  60 * time.Second,
		MarkoutHorizon:          5 * time.Second,
	}
}
