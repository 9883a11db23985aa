package domain

import "math"

// MarkoutConfig holds the tunable constants of the adaptive toxic-flow
// defense: a per-ticker EMA of realized markout that, once it turns
// persistently bad, bumps up the edge and width a ticker's quotes must
// clear before the bumps decay back off.
type MarkoutConfig struct {
	Alpha        float64 // EMA smoothing applied to each realized markout observation
	BadThreshold float64 // EMA at or below this is toxic flow
	EdgeBump     float64 // extra distance (price units) required on the bid side when toxic
	WidthBump    float64 // extra min-width (price units) required on both sides when toxic
}

// DefaultMarkoutConfig matches mm.py's mo_alpha/mo_bad_threshold/edge_bump/width_bump.
func DefaultMarkoutConfig() MarkoutConfig {
	return MarkoutConfig{
		Alpha:        0.4,
		BadThreshold: -0.003,
		EdgeBump:     0.002,
		WidthBump:    0.01,
	}
}

// UpdateMarkoutEMA folds one realized markout observation (positive
// means the fill looked good in hindsight) into the EMA and recomputes
// the edge/width bonuses: toxic flow holds each bonus at its bump
// value, otherwise both decay by half.
func UpdateMarkoutEMA(prevEMA, prevEdgeBonus, prevWidthBonus, realizedMarkout float64, cfg MarkoutConfig) (ema, edgeBonus, widthBonus float64) {
	ema = cfg.Alpha*realizedMarkout + (1-cfg.Alpha)*prevEMA
	if ema <= cfg.BadThreshold {
		edgeBonus = math.Max(prevEdgeBonus, cfg.EdgeBump)
		widthBonus = math.Max(prevWidthBonus, cfg.WidthBump)
	} else {
		edgeBonus = math.Max(0, prevEdgeBonus*0.5)
		widthBonus = math.Max(0, prevWidthBonus*0.5)
	}
	return ema, edgeBonus, widthBonus
}
