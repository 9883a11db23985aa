package domain

import (
	"sort"
	"time"

	"golang.org/x/exp/maps"
)

// VolEntry is one ticker's cached volatility reading.
type VolEntry struct {
	Sigma      float64 // EWMA of |logit return|; 0 is the "insufficient data" sentinel
	Percentile float64 // empirical CDF within the snapshot's ticker set, [0,1]
}

// VolatilityCache is the process-wide, reference-swapped percentile cache
// for C3. Readers hold a pointer obtained via Load and never see a
// partially updated snapshot — refreshes build a brand new cache and
// swap the pointer atomically.
type VolatilityCache struct {
	Entries       map[string]VolEntry
	LastRefreshTS time.Time
}

// EmptyVolatilityCache is a ready-to-use zero cache for startup, before
// the first refresh has run.
func EmptyVolatilityCache() *VolatilityCache {
	return &VolatilityCache{Entries: map[string]VolEntry{}}
}

// Lookup returns the cached entry for ticker and whether it was present.
func (c *VolatilityCache) Lookup(ticker string) (VolEntry, bool) {
	if c == nil {
		return VolEntry{}, false
	}
	e, ok := c.Entries[ticker]
	return e, ok
}

// Candle is one OHLC bar, per the get_candles exchange interface.
type Candle struct {
	Open, High, Low, Close float64
	TS                     time.Time
}

const (
	// DefaultVolAlpha is the EWMA smoothing applied to |logit return|.
	DefaultVolAlpha = 0.3
	// MinValidReturns below this many valid 1-step returns, a ticker's
	// sigma is the sentinel 0 and it is excluded from ranking.
	MinValidReturns = 8
)

// ComputeSigma converts a series of midpoint candle closes into a
// volatility reading: logit-transform closes (dropping extremes),
// take 1-step returns, and EWMA their absolute value.
//
// Returns (0, false) when fewer than MinValidReturns valid returns are
// available — the sentinel case that excludes a ticker from ranking.
func ComputeSigma(closes []float64, alpha float64) (float64, bool) {
	logits := make([]float64, 0, len(closes))
	for _, c := range closes {
		if l, ok := Logit(c); ok {
			logits = append(logits, l)
		}
	}
	if len(logits) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(logits)-1)
	for i := 1; i < len(logits); i++ {
		returns = append(returns, logits[i]-logits[i-1])
	}
	if len(returns) < MinValidReturns {
		return 0, false
	}

	abs := make([]float64, len(returns))
	for i, r := range returns {
		abs[i] = mathAbs(r)
	}
	return EWMA(abs, alpha), true
}

func mathAbs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// BuildPercentiles ranks a set of per-ticker sigmas into percentiles in
// [0,1]. Ties break by ticker name (keys are sorted by name before the
// stable sort by sigma). With exactly one
// ticker, its percentile is 0. Tickers with a sentinel sigma (computed
// via ComputeSigma's false branch) should be excluded by the caller
// before calling this.
func BuildPercentiles(sigmas map[string]float64) map[string]float64 {
	tickers := maps.Keys(sigmas)
	sort.Strings(tickers)
	sort.SliceStable(tickers, func(i, j int) bool {
		return sigmas[tickers[i]] < sigmas[tickers[j]]
	})

	out := make(map[string]float64, len(tickers))
	n := len(tickers)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[tickers[0]] = 0
		return out
	}
	for rank, t := range tickers {
		out[t] = float64(rank) / float64(n-1)
	}
	return out
}
