package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRiskScoreNoVolDataFallsBackToTimeRiskOnly(t *testing.T) {
	cfg := DefaultRiskConfig()
	score := RiskScore(24, nil, nil, cfg)
	require.InDelta(t, 0.0273, score, 1e-3) // exp(-0.15*24)
}

func TestRiskScoreHighVolPercentileNearExpiry(t *testing.T) {
	cfg := DefaultRiskConfig()
	p := 0.9
	// close in 15 minutes = 0.25 hours, vol percentile 0.9
	score := RiskScore(0.25, &p, nil, cfg)
	require.InDelta(t, 2.70, score, 0.02)
}

func TestRiskScoreNegativeHoursClampsToZero(t *testing.T) {
	cfg := DefaultRiskConfig()
	p := 0.0
	score := RiskScore(-1, &p, nil, cfg)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestRiskScoreFallsBackToSigmaScaling(t *testing.T) {
	cfg := DefaultRiskConfig()
	sigma := 0.25
	score := RiskScore(0, nil, &sigma, cfg)
	// vol_score = min(1, 0.25/0.5) = 0.5; time_risk = 1
	require.InDelta(t, 1+cfg.VolGamma*0.5, score, 1e-9)
}

func TestClassifyRiskBuckets(t *testing.T) {
	cfg := DefaultRiskConfig()
	require.Equal(t, BucketJoinTouch, ClassifyRisk(1.0, cfg))
	require.Equal(t, BucketOneTickBack, ClassifyRisk(2.0, cfg))
	require.Equal(t, BucketSkip, ClassifyRisk(3.5, cfg))
}

func TestContinuousTicksFloorsProduct(t *testing.T) {
	require.Equal(t, 2, ContinuousTicks(2.7, 1.0))
	require.Equal(t, 0, ContinuousTicks(0.9, 1.0))
}
