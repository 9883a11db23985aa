package domain

import "math"

// RiskConfig holds the tunable constants of the risk scorer (C4) and
// the quote-level policy (C5). Field names mirror the `lip_*` config
// keys from the external configuration surface.
type RiskConfig struct {
	TimeRiskK           float64 // k in exp(-k*hours_to_expiry)
	VolGamma            float64 // gamma weight on volatility percentile
	RiskThreshold       float64 // skip above this
	MediumRiskThreshold float64 // join-touch below this
	HighRiskThreshold   float64 // one-tick-back below this, else skip
	DiscountFactor      float64 // qualifying-band multiplier base
	InventorySkewFactor float64
	ContinuousAlpha     float64 // alpha for the alternate continuous ticks policy
}

// DefaultRiskConfig matches spec.md §6's defaults.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		TimeRiskK:           0.15,
		VolGamma:            2.0,
		RiskThreshold:       3.0,
		MediumRiskThreshold: 1.5,
		HighRiskThreshold:   2.5,
		DiscountFactor:      0.95,
		InventorySkewFactor: 0.01,
		ContinuousAlpha:     1.0,
	}
}

// RiskScore combines time-to-expiry decay and a volatility percentile
// into a single scalar used throughout C5/C7/C10.
//
//	hours_to_expiry = max(0, (close_time - now) / 3600)
//	time_risk       = exp(-k * hours_to_expiry)
//	vol_score       = percentile[ticker]                  if cached
//	                  min(1, sigma[ticker] / 0.5)          fallback scaling
//	                  0                                    if neither available
//	risk_score      = time_risk * (1 + gamma * vol_score)
func RiskScore(hoursToExpiry float64, volPercentile *float64, fallbackSigma *float64, cfg RiskConfig) float64 {
	if hoursToExpiry < 0 {
		hoursToExpiry = 0
	}
	timeRisk := math.Exp(-cfg.TimeRiskK * hoursToExpiry)

	volScore := 0.0
	switch {
	case volPercentile != nil:
		volScore = *volPercentile
	case fallbackSigma != nil:
		volScore = math.Min(1, *fallbackSigma/0.5)
	}

	return timeRisk * (1 + cfg.VolGamma*volScore)
}

// RiskBucket is the discrete join/back-off/skip decision of §4.5 step 3.
type RiskBucket int

const (
	BucketJoinTouch RiskBucket = iota // target_ticks = 0
	BucketOneTickBack                 // target_ticks = 1
	BucketSkip
)

// String names a bucket for logging and dashboards.
func (b RiskBucket) String() string {
	switch b {
	case BucketJoinTouch:
		return "join_touch"
	case BucketOneTickBack:
		return "one_tick_back"
	default:
		return "skip"
	}
}

// ClassifyRisk buckets a risk score into discrete quoting behavior.
// A continuous `alpha*risk_score` policy exists alongside it
// (ContinuousTicks) for comparison but is not used by the scheduler —
// see DESIGN.md.
func ClassifyRisk(riskScore float64, cfg RiskConfig) RiskBucket {
	switch {
	case riskScore > cfg.RiskThreshold:
		return BucketSkip
	case riskScore < cfg.MediumRiskThreshold:
		return BucketJoinTouch
	case riskScore < cfg.HighRiskThreshold:
		return BucketOneTickBack
	default:
		return BucketSkip
	}
}

// ContinuousTicks implements the alternate, disabled-by-default
// continuous risk-to-ticks policy: max_ticks = floor(alpha * risk_score).
// Kept for side-by-side comparison per SPEC_FULL.md §4; not wired into
// the default quote-level policy.
func ContinuousTicks(riskScore, alpha float64) int {
	return int(math.Floor(alpha * riskScore))
}
