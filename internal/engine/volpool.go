package engine

// volpool.go — C3's volatility refresh: a bounded worker pool fetches
// candles per ticker, computes each one's EWMA sigma, then a single
// pass turns the valid sigmas into cross-sectional percentiles and
// atomically swaps the shared cache. Fetches run through an N-worker
// pool rather than one goroutine per ticker, since this fan-out runs
// on every refresh interval indefinitely rather than once per command.

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polybot/internal/domain"
)

// atomicVolCache is a reference-swapped pointer to the current
// VolatilityCache: readers never observe a partially updated snapshot.
type atomicVolCache struct {
	p atomic.Pointer[domain.VolatilityCache]
}

func (a *atomicVolCache) Store(c *domain.VolatilityCache) { a.p.Store(c) }
func (a *atomicVolCache) Load() *domain.VolatilityCache   { return a.p.Load() }

const candleLookback = 48 * time.Hour
const candlePeriod = 5 * time.Minute

// runVolatilityPool refreshes the volatility cache every
// cfg.VolRefreshInterval using cfg.VolWorkerCount concurrent fetchers.
func (s *Scheduler) runVolatilityPool(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.VolRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshVolatility(ctx)
		}
	}
}

type sigmaResult struct {
	ticker string
	sigma  float64
	ok     bool
}

func (s *Scheduler) refreshVolatility(ctx context.Context) {
	tickers := s.allTickers()
	if len(tickers) == 0 {
		return
	}

	jobs := make(chan string, len(tickers))
	results := make(chan sigmaResult, len(tickers))
	for _, t := range tickers {
		jobs <- t
	}
	close(jobs)

	workers := s.cfg.VolWorkerCount
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for ticker := range jobs {
				sigma, ok := s.fetchSigma(ctx, ticker)
				results <- sigmaResult{ticker: ticker, sigma: sigma, ok: ok}
			}
			return nil
		})
	}
	g.Wait()
	close(results)

	sigmas := make(map[string]float64)
	for r := range results {
		if r.ok {
			sigmas[r.ticker] = r.sigma
		}
	}
	percentiles := domain.BuildPercentiles(sigmas)

	entries := make(map[string]domain.VolEntry, len(sigmas))
	for t, sigma := range sigmas {
		entries[t] = domain.VolEntry{Sigma: sigma, Percentile: percentiles[t]}
	}
	s.volCache.Store(&domain.VolatilityCache{Entries: entries, LastRefreshTS: time.Now()})
}

func (s *Scheduler) fetchSigma(ctx context.Context, ticker string) (float64, bool) {
	end := time.Now()
	start := end.Add(-candleLookback)
	candles, err := s.exchange.GetCandles(ctx, ticker, start, end, candlePeriod)
	if err != nil {
		slog.Warn("volatility: get_candles failed", "ticker", ticker, "err", err)
		return 0, false
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return domain.ComputeSigma(closes, domain.DefaultVolAlpha)
}

// classifyErr extracts the ErrorKind from an exchange error, defaulting
// to ErrInternal for anything not already classified.
func classifyErr(err error) domain.ErrorKind {
	if apiErr, ok := err.(*domain.APIError); ok {
		return apiErr.Kind
	}
	return domain.ErrInternal
}
