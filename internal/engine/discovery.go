package engine

// discovery.go — C10, the market discovery worker. Polls
// GetValidMarkets on an interval, filters out markets that are already
// tracked, past close, sitting at an extreme price, or toxicity-flagged,
// and feeds the rest into a bounded queue; a full queue discards the
// oldest candidate with a warning rather than blocking the poller. Uses
// a mutex-guarded slice rather than a channel specifically so the
// overflow can evict by age instead of by however select happens to
// schedule. Admission off that queue is the main scheduler's job
// (scheduler.go's runCycle), not this worker's — §4.11 step 2 drains the
// queue at the start of each tick.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

const discoveryQueueCap = 256

// extremePriceLow/extremePriceHigh bound the YES mid range discovery
// will still admit a market at; outside this band the market is close
// enough to resolved that quoting it is pure risk, per §4.10's
// "already at extreme prices" filter.
const (
	extremePriceLow  = 0.02
	extremePriceHigh = 0.98
)

type discoveryQueue struct {
	mu    sync.Mutex
	items []ports.MarketInfo
}

func (q *discoveryQueue) push(info ports.MarketInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= discoveryQueueCap {
		dropped := q.items[0]
		q.items = q.items[1:]
		slog.Warn("discovery queue full, dropping oldest candidate", "dropped_ticker", dropped.Ticker)
	}
	q.items = append(q.items, info)
}

func (q *discoveryQueue) drain() []ports.MarketInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// eligibleForDiscovery applies §4.10's "filters out markets ... already
// at extreme prices, past close time, or with historical toxicity
// flags" rule, mirroring the live engine's gateCheck shape: a sequence
// of independent disqualifiers, any one of which drops the candidate.
func eligibleForDiscovery(info ports.MarketInfo, now time.Time) bool {
	if !info.CloseTS.IsZero() && !info.CloseTS.After(now) {
		return false
	}
	if info.YesMid > 0 && (info.YesMid <= extremePriceLow || info.YesMid >= extremePriceHigh) {
		return false
	}
	if info.Toxic {
		return false
	}
	return true
}

// runDiscovery polls GetValidMarkets every cfg.DiscoveryInterval and
// enqueues eligible tickers not yet tracked. Admission off the queue
// happens on the main scheduler's tick cadence (runCycle), not here.
func (s *Scheduler) runDiscovery(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			markets, err := s.exchange.GetValidMarkets(ctx)
			if err != nil {
				slog.Warn("discovery: get_valid_markets failed", "err", err)
				s.breaker.RecordError(classifyErr(err), s.cfg.Breaker, now)
				continue
			}
			s.breaker.RecordSuccess()

			known := make(map[string]bool)
			for _, t := range s.allTickers() {
				known[t] = true
			}
			for _, m := range markets {
				if known[m.Ticker] {
					continue
				}
				if !eligibleForDiscovery(m, now) {
					continue
				}
				s.discovery.push(m)
			}
		}
	}
}

// candidateRiskScore evaluates §4.10's admission-time risk gate for a
// not-yet-tracked market, using the current volatility cache even if
// stale, the same way riskScoreFor does for an already-tracked one.
func (s *Scheduler) candidateRiskScore(info ports.MarketInfo, now time.Time) float64 {
	hours := 0.0
	if h := info.CloseTS.Sub(now).Hours(); h > 0 {
		hours = h
	}
	cache := s.volCache.Load()
	if entry, ok := cache.Lookup(info.Ticker); ok {
		pct := entry.Percentile
		return domain.RiskScore(hours, &pct, nil, s.cfg.Risk)
	}
	return domain.RiskScore(hours, nil, nil, s.cfg.Risk)
}

// admitFromQueue tracks candidates off the queue until the concurrent
// markets-with-orders cap would be exceeded, per §4.10's admission
// rule. When LIP risk is enabled, a candidate whose current risk score
// exceeds RiskThreshold is dropped rather than admitted (it will be
// re-evaluated from scratch if discovery sees it again). Markets beyond
// the concurrency cap stay queued for a later tick.
func (s *Scheduler) admitFromQueue(ctx context.Context, queue *discoveryQueue) {
	pending := queue.drain()
	s.mu.Lock()
	markets := make([]*domain.TrackedMarket, 0, len(s.tracked))
	for _, tm := range s.tracked {
		markets = append(markets, tm)
	}
	s.mu.Unlock()

	activeCount := 0
	for _, tm := range markets {
		if tm.HasLiveOrder(domain.SideBuy) || tm.HasLiveOrder(domain.SideSell) {
			activeCount++
		}
	}

	now := time.Now()
	admitted := 0
	requeue := pending[:0:0]
	for _, m := range pending {
		if activeCount+admitted >= s.cfg.MaxMarketsWithOrders {
			requeue = append(requeue, m)
			continue
		}
		if s.cfg.LIPEnabled && s.candidateRiskScore(m, now) > s.cfg.Risk.RiskThreshold {
			slog.Info("discovery: risk skip on admission", "ticker", m.Ticker)
			continue
		}
		s.track(ctx, m)
		admitted++
	}
	for _, m := range requeue {
		queue.push(m)
	}
}
