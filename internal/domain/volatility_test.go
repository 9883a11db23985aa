package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSigmaSentinelWhenTooFewReturns(t *testing.T) {
	closes := []float64{0.5, 0.51, 0.49}
	sigma, ok := ComputeSigma(closes, DefaultVolAlpha)
	require.False(t, ok)
	require.Zero(t, sigma)
}

func TestComputeSigmaDropsExtremesBeforeLogit(t *testing.T) {
	closes := []float64{0, 1, 0.5, 0.52, 0.48, 0.51, 0.49, 0.53, 0.47, 0.50, 0.52}
	sigma, ok := ComputeSigma(closes, DefaultVolAlpha)
	require.True(t, ok)
	require.Greater(t, sigma, 0.0)
}

func TestComputeSigmaHigherChurnYieldsHigherSigma(t *testing.T) {
	calm := []float64{0.50, 0.501, 0.499, 0.502, 0.498, 0.501, 0.500, 0.499, 0.501, 0.500}
	choppy := []float64{0.50, 0.60, 0.40, 0.65, 0.35, 0.62, 0.38, 0.61, 0.39, 0.55}

	calmSigma, ok := ComputeSigma(calm, DefaultVolAlpha)
	require.True(t, ok)
	choppySigma, ok := ComputeSigma(choppy, DefaultVolAlpha)
	require.True(t, ok)
	require.Greater(t, choppySigma, calmSigma)
}

func TestBuildPercentilesRanksAscending(t *testing.T) {
	sigmas := map[string]float64{"A": 0.1, "B": 0.3, "C": 0.2}
	pct := BuildPercentiles(sigmas)
	require.InDelta(t, 0.0, pct["A"], 1e-9)
	require.InDelta(t, 0.5, pct["C"], 1e-9)
	require.InDelta(t, 1.0, pct["B"], 1e-9)
}

func TestBuildPercentilesSingleTickerIsZero(t *testing.T) {
	pct := BuildPercentiles(map[string]float64{"ONLY": 0.4})
	require.InDelta(t, 0.0, pct["ONLY"], 1e-9)
}

func TestBuildPercentilesEmptyInputReturnsEmpty(t *testing.T) {
	pct := BuildPercentiles(map[string]float64{})
	require.Empty(t, pct)
}

func TestVolatilityCacheLookupMissing(t *testing.T) {
	c := EmptyVolatilityCache()
	_, ok := c.Lookup("PRES-2028")
	require.False(t, ok)
}

func TestVolatilityCacheLookupOnNilCacheIsSafe(t *testing.T) {
	var c *VolatilityCache
	_, ok := c.Lookup("PRES-2028")
	require.False(t, ok)
}
