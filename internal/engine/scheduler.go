package engine

// scheduler.go — C11, the main tick loop. Structurally grounded on the
// teacher's scanner.Scanner: a ticker-driven Run loop that calls one
// runCycle per tick and shuts down cleanly on ctx.Done(). Generalized
// from a single scan pass to the five-step reconcile/quote/breaker-check
// cycle of §4.11.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

// Scheduler owns the set of tracked markets and drives C7's per-tick
// reconciliation, C11's breaker checks, and dispatches C8/C9 stream
// events into the domain's shared OrderBook/Inventory state.
type Scheduler struct {
	cfg Config

	exchange ports.ExchangeClient
	storage  ports.BreakerStorage
	metrics  ports.MetricsSink
	alerts   ports.AlertSink
	notifier ports.Notifier

	breaker *domain.CircuitBreaker
	volCache atomicVolCache

	mu      sync.Mutex
	tracked map[string]*domain.TrackedMarket

	discovery *discoveryQueue

	lastInventoryCheck time.Time
	lastBalanceFetch   time.Time
	// balance is the last-known available cash, used to cap buy size
	// (§4 "capital/affordability cap"). -1 means never fetched, in which
	// case the affordability cap does not apply.
	balance float64
}

// NewScheduler wires a scheduler from its ports. The breaker is
// constructed here so its onTrip callback can close over storage/alerts.
func NewScheduler(cfg Config, exchange ports.ExchangeClient, storage ports.BreakerStorage, metrics ports.MetricsSink, alerts ports.AlertSink, notifier ports.Notifier) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		exchange:  exchange,
		storage:   storage,
		metrics:   metrics,
		alerts:    alerts,
		notifier:  notifier,
		tracked:   make(map[string]*domain.TrackedMarket),
		balance:   -1,
		discovery: &discoveryQueue{},
	}
	s.volCache.Store(domain.EmptyVolatilityCache())
	s.breaker = domain.NewCircuitBreaker(func(st domain.State) {
		slog.Error("circuit breaker tripped", "reason", st.TripReason)
		if s.storage != nil {
			if err := s.storage.SaveBreakerState(context.Background(), st); err != nil {
				slog.Error("persist breaker state failed", "err", err)
			}
		}
		if s.alerts != nil {
			s.alerts.WriteAlert(context.Background(), ports.Alert{
				Level: ports.AlertCritical, Message: "circuit breaker tripped: " + st.TripReason,
			})
		}
		if s.notifier != nil {
			s.notifier.NotifyBreakerTrip(context.Background(), st.TripReason)
		}
	})
	return s
}

// Run drives the main tick loop at cfg.Dt until ctx is canceled. It also
// launches the discovery worker (C10) and volatility refresh pool (C3)
// as background goroutines sharing ctx's lifetime.
func (s *Scheduler) Run(ctx context.Context) error {
	if state, err := s.storage.LoadBreakerState(ctx); err == nil && state.IsOpen {
		slog.Warn("resuming with circuit breaker already open", "reason", state.TripReason)
		s.breaker.RestoreOpen(state.TripReason, state.TripTS)
	}

	var g errgroup.Group
	g.Go(func() error { s.runDiscovery(ctx); return nil })
	g.Go(func() error { s.runVolatilityPool(ctx); return nil })

	ticker := time.NewTicker(s.cfg.Dt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return nil
		case now := <-ticker.C:
			s.runCycle(ctx, now)
		}
	}
}

// runCycle is one tick of §4.11's five steps: drain the discovery queue
// and admit eligible candidates, reconcile every tracked market, check
// inventory imbalance periodically, and render the dashboard. Breaker
// state is consulted inside reconcileMarket so a trip mid-cycle stops
// further placements without aborting bookkeeping for markets already
// visited.
func (s *Scheduler) runCycle(ctx context.Context, now time.Time) {
	s.admitFromQueue(ctx, s.discovery)

	s.mu.Lock()
	tickers := make([]string, 0, len(s.tracked))
	for t := range s.tracked {
		tickers = append(tickers, t)
	}
	s.mu.Unlock()

	rows := make([]ports.MarketDashboardRow, 0, len(tickers))
	for _, ticker := range tickers {
		s.mu.Lock()
		tm := s.tracked[ticker]
		s.mu.Unlock()
		if tm == nil {
			continue
		}
		s.reconcileMarket(ctx, tm, now)
		rows = append(rows, s.dashboardRow(tm, now))
	}

	if now.Sub(s.lastInventoryCheck) >= s.cfg.InventoryCheckInterval {
		s.lastInventoryCheck = now
		s.checkInventoryImbalance(now)
	}

	if now.Sub(s.lastBalanceFetch) >= s.cfg.BalanceRefreshInterval {
		s.lastBalanceFetch = now
		s.refreshBalance(ctx)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyTick(ctx, rows); err != nil {
			slog.Warn("notify tick failed", "err", err)
		}
	}
}

// checkInventoryImbalance sums signed inventory across all non-resolved
// tracked markets and trips the breaker if it exceeds the configured
// fraction of max position, per §4.11 step 5.
func (s *Scheduler) checkInventoryImbalance(now time.Time) {
	s.mu.Lock()
	markets := make([]*domain.TrackedMarket, 0, len(s.tracked))
	for _, tm := range s.tracked {
		markets = append(markets, tm)
	}
	s.mu.Unlock()

	net := 0
	for _, tm := range markets {
		tm.Lock()
		state := tm.State
		contracts, _ := tm.Inv.Snapshot()
		tm.Unlock()
		if state == domain.StateExiting || state == domain.StateClosed {
			continue
		}
		net += contracts
	}
	s.breaker.CheckInventoryImbalance(net, s.cfg.MaxPosition, s.cfg.Breaker, now)
}

// refreshBalance refetches available cash for the affordability cap
// (mm.py's get_available_cash). A transient fetch failure just leaves
// the previous balance in place rather than disrupting quoting.
func (s *Scheduler) refreshBalance(ctx context.Context) {
	bal, err := s.exchange.GetBalance(ctx)
	if err != nil {
		slog.Warn("refresh balance failed", "err", err)
		return
	}
	s.mu.Lock()
	s.balance = bal
	s.mu.Unlock()
}

func (s *Scheduler) balanceSnapshot() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Scheduler) dashboardRow(tm *domain.TrackedMarket, now time.Time) ports.MarketDashboardRow {
	contracts, pnl := tm.Inv.Snapshot()
	touch := tm.Book.SnapshotTouch()
	riskScore := s.riskScoreFor(tm, now)

	tm.Lock()
	state := tm.State
	tm.Unlock()

	return ports.MarketDashboardRow{
		Ticker:      tm.Market.Ticker,
		State:       string(state),
		BestBid:     touch.BestBid,
		BestAsk:     touch.BestAsk,
		Inventory:   contracts,
		RealizedPnL: pnl,
		RiskScore:   riskScore,
		RiskBucket:  domain.ClassifyRisk(riskScore, s.cfg.Risk).String(),
	}
}

// track registers a newly discovered market under management, at
// domain.StateIdle, with a fresh book and inventory, and starts its
// dedicated book/fill stream subscriptions. A no-op if already tracked.
func (s *Scheduler) track(ctx context.Context, info ports.MarketInfo) {
	s.mu.Lock()
	if _, ok := s.tracked[info.Ticker]; ok {
		s.mu.Unlock()
		return
	}
	s.tracked[info.Ticker] = &domain.TrackedMarket{
		Market: domain.Market{
			Ticker:     info.Ticker,
			TickSize:   domain.TickSize,
			YesCloseTS: info.CloseTS,
			LIPTarget:  info.LIPTarget,
		},
		Book:  domain.NewOrderBook(info.Ticker),
		Inv:   domain.NewInventory(),
		State: domain.StateIdle,
	}
	s.mu.Unlock()

	go s.subscribeMarketStreams(ctx, info.Ticker)
}

func (s *Scheduler) trackedSnapshot(ticker string) *domain.TrackedMarket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracked[ticker]
}

func (s *Scheduler) allTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tracked))
	for t := range s.tracked {
		out = append(out, t)
	}
	return out
}
