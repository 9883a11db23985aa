package domain

import "math"

// BandLevel is one level of a qualifying band: a resting price level
// annotated with its distance from best and the LIP discount multiplier
// that distance implies.
type BandLevel struct {
	Price         float64
	Size          float64
	TicksFromBest int
	Multiplier    float64
}

// BuildQualifyingBand walks levels (sorted best-first) accumulating size
// until target is met, annotating each level with its tick distance from
// the best price and a discountFactor^ticks multiplier. Returns nil if
// the book is too thin to reach target. A nil band does not stop quoting
// by itself: ChooseLevel treats it as zero depth and prices at the touch.
func BuildQualifyingBand(levels []BookLevel, target, discountFactor float64) []BandLevel {
	if len(levels) == 0 || target <= 0 {
		return nil
	}
	pBest := levels[0].Price
	band := make([]BandLevel, 0, len(levels))
	accumulated := 0.0

	for _, lvl := range levels {
		ticks := TicksBetween(lvl.Price, pBest)
		band = append(band, BandLevel{
			Price:         lvl.Price,
			Size:          lvl.Size,
			TicksFromBest: ticks,
			Multiplier:    math.Pow(discountFactor, float64(ticks)),
		})
		accumulated += lvl.Size
		if accumulated >= target {
			return band
		}
	}
	return nil // book too thin
}

// LIPIntensity is size resting at best divided by the qualifying target.
func LIPIntensity(band []BandLevel, target float64) float64 {
	if len(band) == 0 || target <= 0 {
		return 0
	}
	return band[0].Size / target
}

// SkipReason names why a DesiredQuote could not be produced on one side.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipRisk          SkipReason = "risk"
	SkipLIPTargetMet  SkipReason = "lip_target_met"
	SkipExtremePrice  SkipReason = "extreme_price"
	SkipThinBook      SkipReason = "thin_book"
)

// QuoteLevelInput bundles everything ChooseLevel needs to pick a single
// side's price and tick distance.
type QuoteLevelInput struct {
	Band           []BandLevel
	BestPrice      float64 // best_bid for a bid quote, best_ask for an ask quote
	IsBid          bool
	RiskScore      float64
	Inventory      int
	MaxPosition    int
	Cfg            RiskConfig
	BestSizeAtBest float64 // resting size at our own best, for the LIP-met check
	Target         float64
	// EdgeBonusTicks adds extra distance from touch on the bid side when
	// this ticker's markout EMA has turned toxic (see MarkoutConfig).
	EdgeBonusTicks int
}

// ChosenLevel is the outcome of ChooseLevel.
type ChosenLevel struct {
	Price         float64
	TicksFromBest int
	Multiplier    float64
	SkipReason    SkipReason
	// FlagCancelBuy is set when the LIP target is already met on the bid
	// side, signalling the caller to cancel any resting buy order.
	FlagCancelBuy bool
}

// ChooseLevel implements §4.5's choose_level: risk gate, LIP-met gate,
// discrete tick bucket, inventory skew, band clamp, and the
// never-improve-touch price rule. A price outside [0.02, 0.98] is
// rejected as degenerate.
func ChooseLevel(in QuoteLevelInput) ChosenLevel {
	if in.RiskScore > in.Cfg.RiskThreshold {
		return ChosenLevel{SkipReason: SkipRisk}
	}

	if in.IsBid && in.BestSizeAtBest >= in.Target && in.Target > 0 {
		return ChosenLevel{SkipReason: SkipLIPTargetMet, FlagCancelBuy: true}
	}

	bucket := ClassifyRisk(in.RiskScore, in.Cfg)
	var targetTicks int
	switch bucket {
	case BucketJoinTouch:
		targetTicks = 0
	case BucketOneTickBack:
		targetTicks = 1
	default:
		return ChosenLevel{SkipReason: SkipRisk}
	}

	if in.MaxPosition > 0 {
		skewTicks := int(math.Floor(in.Cfg.InventorySkewFactor * (math.Abs(float64(in.Inventory)) / float64(in.MaxPosition)) * 3))
		skewApplies := (in.IsBid && in.Inventory > 0) || (!in.IsBid && in.Inventory < 0)
		if skewApplies {
			targetTicks += skewTicks
		}
	}

	if in.IsBid {
		targetTicks += in.EdgeBonusTicks
	}

	maxTicks := 0
	for _, lvl := range in.Band {
		if lvl.TicksFromBest > maxTicks {
			maxTicks = lvl.TicksFromBest
		}
	}
	if targetTicks > maxTicks {
		targetTicks = maxTicks
	}

	var price float64
	if in.IsBid {
		price = ToTick(in.BestPrice - float64(targetTicks)*TickSize)
	} else {
		price = ToTick(in.BestPrice + float64(targetTicks)*TickSize)
	}

	if price < 0.02 || price > 0.98 {
		return ChosenLevel{SkipReason: SkipExtremePrice}
	}

	mult := math.Pow(in.Cfg.DiscountFactor, float64(targetTicks))
	return ChosenLevel{Price: price, TicksFromBest: targetTicks, Multiplier: mult}
}

// DesiredQuote is derived fresh each tick from book + risk + inventory;
// never persisted.
type DesiredQuote struct {
	BidPrice, AskPrice         float64
	BidSize, AskSize           float64
	BidSkipReason, AskSkipReason SkipReason
	CancelBuy, CancelSell        bool
}

// Skipped reports whether both sides were skipped (nothing to place).
func (q DesiredQuote) Skipped() bool {
	return q.BidSkipReason != SkipNone && q.AskSkipReason != SkipNone
}

// WidenForMinWidth resolves a conflict between a min-quote-width floor
// and a risk-implied join-touch quote by widening both sides
// symmetrically around the midpoint (spec.md §9 Open Question,
// resolved this way pending confirmation).
func WidenForMinWidth(bid, ask, minWidth float64) (float64, float64) {
	width := ask - bid
	if width >= minWidth || minWidth <= 0 {
		return bid, ask
	}
	mid := (bid + ask) / 2
	half := minWidth / 2
	return ToTick(math.Max(MinPrice, mid-half)), ToTick(math.Min(MaxPrice, mid+half))
}
