package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateMarkoutEMABumpsOnToxicFlow(t *testing.T) {
	cfg := DefaultMarkoutConfig()
	ema, edge, width := UpdateMarkoutEMA(0, 0, 0, -0.01, cfg)
	require.InDelta(t, -0.004, ema, 1e-9) // 0.4*-0.01 + 0.6*0
	require.InDelta(t, cfg.EdgeBump, edge, 1e-9)
	require.InDelta(t, cfg.WidthBump, width, 1e-9)
}

func TestUpdateMarkoutEMADecaysOnGoodFlow(t *testing.T) {
	cfg := DefaultMarkoutConfig()
	ema, edge, width := UpdateMarkoutEMA(0, cfg.EdgeBump, cfg.WidthBump, 0.01, cfg)
	require.Greater(t, ema, cfg.BadThreshold)
	require.InDelta(t, cfg.EdgeBump/2, edge, 1e-9)
	require.InDelta(t, cfg.WidthBump/2, width, 1e-9)
}

func TestUpdateMarkoutEMAHoldsBonusAtBumpWhileRepeatedlyToxic(t *testing.T) {
	cfg := DefaultMarkoutConfig()
	ema, edge, width := 0.0, 0.0, 0.0
	for i := 0; i < 5; i++ {
		ema, edge, width = UpdateMarkoutEMA(ema, edge, width, -0.01, cfg)
	}
	require.LessOrEqual(t, ema, cfg.BadThreshold)
	require.InDelta(t, cfg.EdgeBump, edge, 1e-9)
	require.InDelta(t, cfg.WidthBump, width, 1e-9)
}
