package engine

// market.go — C7's per-market reconciliation plus the C8/C9 stream
// dispatch handlers. Each tracked market gets its own long-lived book
// and fill subscription goroutine (one WS logical stream per ticker);
// mutation of shared OrderBook/Inventory happens under their own locks
// so the main tick loop only ever reads consistent snapshots.

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

const quoteBaseSize = 10
const quoteThrottledSize = 5

// reconcileMarket runs C6 (resolution detection) then, if the market is
// still live, C4/C5 (risk score, quote levels) and places/cancels orders
// to match the desired quote. A tripped circuit breaker blocks new
// placements but cancellations still proceed.
func (s *Scheduler) reconcileMarket(ctx context.Context, tm *domain.TrackedMarket, now time.Time) {
	tm.Lock()
	defer tm.Unlock()

	yesBid := tm.Book.BestYesBid()
	noBid := tm.Book.BestNoBid()
	resolved := domain.DetectResolution(yesBid, noBid)

	if resolved == domain.ResolvedInconsistent {
		slog.Warn("resolved side inconsistent, holding", "ticker", tm.Market.Ticker)
		return
	}
	if resolved != domain.ResolvedNone {
		s.reconcileResolved(ctx, tm, resolved)
		return
	}
	if tm.Market.Expired(now) {
		s.reconcileExpiredUnresolved(ctx, tm)
		return
	}

	if s.breaker.IsOpen() {
		s.cancelLive(ctx, tm, domain.SideBuy)
		s.cancelLive(ctx, tm, domain.SideSell)
		tm.State = domain.StateBlocked
		return
	}

	s.reconcileQuoting(ctx, tm, now)
}

// reconcileResolved implements §4.6's cash-out table: submit an IOC
// order closing the remaining position, then transition to Closed once
// flat. Submitted exactly once per resolution (CashOutSubmitted guards
// against re-submitting every tick while the fill is in flight).
func (s *Scheduler) reconcileResolved(ctx context.Context, tm *domain.TrackedMarket, resolved domain.ResolvedSide) {
	tm.State = domain.StateExiting
	s.cancelLive(ctx, tm, domain.SideBuy)
	s.cancelLive(ctx, tm, domain.SideSell)

	contracts, _ := tm.Inv.Snapshot()
	if contracts == 0 {
		tm.State = domain.StateClosed
		return
	}
	if tm.CashOutSubmitted {
		return
	}

	action := domain.CashOutAction(resolved, contracts)
	if action.Kind != domain.ActionCashOut {
		return
	}
	_, err := s.exchange.PlaceOrder(ctx, ports.OrderRequest{
		Ticker: tm.Market.Ticker, Side: action.Side, Price: cashOutPrice(action.Side), Size: action.Size, TIF: domain.TIFIOC,
	})
	if err != nil {
		slog.Error("cash-out order failed", "ticker", tm.Market.Ticker, "err", err)
		s.breaker.RecordError(classifyErr(err), s.cfg.Breaker, time.Now())
		return
	}
	s.breaker.RecordSuccess()
	tm.CashOutSubmitted = true
}

// cashOutPrice submits the IOC cash-out marketable against the resolved
// touch: a sell crosses at the floor, a buy-to-cover crosses at the cap.
func cashOutPrice(side domain.OrderSide) float64 {
	if side == domain.SideSell {
		return domain.MinPrice
	}
	return domain.MaxPrice
}

// reconcileExpiredUnresolved handles a market whose close time has
// passed without a resolution signal yet observed on the book: stop
// quoting and wait for the resolution to show up on a later tick.
func (s *Scheduler) reconcileExpiredUnresolved(ctx context.Context, tm *domain.TrackedMarket) {
	s.cancelLive(ctx, tm, domain.SideBuy)
	s.cancelLive(ctx, tm, domain.SideSell)
	tm.State = domain.StateExiting
}

// reconcileQuoting implements §4.5's choose_level for both sides and
// reconciles live orders to match.
func (s *Scheduler) reconcileQuoting(ctx context.Context, tm *domain.TrackedMarket, now time.Time) {
	touch := tm.Book.SnapshotTouch()
	tm.LastTouch = touch

	riskScore := s.riskScoreFor(tm, now)
	contracts, _ := tm.Inv.Snapshot()

	bidLevels := tm.Book.Levels(domain.SideYes)
	askLevels := synthesizeAskLevels(tm.Book.Levels(domain.SideNo))

	if thinBook(bidLevels, s.cfg.ThinBookMinSize) || thinBook(askLevels, s.cfg.ThinBookMinSize) {
		s.applySide(ctx, tm, domain.SideBuy, domain.ChosenLevel{SkipReason: domain.SkipThinBook}, now)
		s.applySide(ctx, tm, domain.SideSell, domain.ChosenLevel{SkipReason: domain.SkipThinBook}, now)
		if tm.LiveBuy == nil && tm.LiveSell == nil {
			tm.State = domain.StateTracked
		}
		return
	}

	target := tm.Market.LIPTarget
	var bidBand, askBand []domain.BandLevel
	var bestSizeAtBid float64
	if s.cfg.LIPEnabled {
		bidBand = domain.BuildQualifyingBand(bidLevels, target, s.cfg.Risk.DiscountFactor)
		askBand = domain.BuildQualifyingBand(askLevels, target, s.cfg.Risk.DiscountFactor)
		if len(bidLevels) > 0 {
			bestSizeAtBid = bidLevels[0].Size
		}
	} else {
		// No LIP enrollment: quote purely on risk, unconstrained by a
		// qualifying-band depth clamp or the LIP-target-met gate.
		target = 0
		bidBand = []domain.BandLevel{{TicksFromBest: 1}}
		askBand = []domain.BandLevel{{TicksFromBest: 1}}
	}

	var edgeBonusTicks int
	if tm.EdgeBonus > 0 {
		edgeBonusTicks = int(math.Ceil(tm.EdgeBonus / domain.TickSize))
	}

	bid := domain.ChooseLevel(domain.QuoteLevelInput{
		Band: bidBand, BestPrice: touch.BestBid, IsBid: true,
		RiskScore: riskScore, Inventory: contracts, MaxPosition: s.cfg.MaxPosition,
		Cfg: s.cfg.Risk, BestSizeAtBest: bestSizeAtBid, Target: target,
		EdgeBonusTicks: edgeBonusTicks,
	})
	ask := domain.ChooseLevel(domain.QuoteLevelInput{
		Band: askBand, BestPrice: touch.BestAsk, IsBid: false,
		RiskScore: riskScore, Inventory: contracts, MaxPosition: s.cfg.MaxPosition,
		Cfg: s.cfg.Risk, Target: target,
	})

	if bid.SkipReason == domain.SkipNone && ask.SkipReason == domain.SkipNone {
		widthFloor := math.Max(s.cfg.MinQuoteWidth, tm.WidthBonus)
		bid.Price, ask.Price = domain.WidenForMinWidth(bid.Price, ask.Price, widthFloor)
	}

	s.applySide(ctx, tm, domain.SideBuy, bid, now)
	s.applySide(ctx, tm, domain.SideSell, ask, now)

	if tm.LiveBuy != nil || tm.LiveSell != nil {
		tm.State = domain.StateQuoting
	} else {
		tm.State = domain.StateTracked
	}
}

// riskScoreFor looks up the cached volatility percentile for the
// market's ticker, falling back to the sentinel (no volatility signal)
// when the cache has no entry yet.
func (s *Scheduler) riskScoreFor(tm *domain.TrackedMarket, now time.Time) float64 {
	hours := tm.Market.HoursToExpiry(now)
	cache := s.volCache.Load()
	if entry, ok := cache.Lookup(tm.Market.Ticker); ok {
		pct := entry.Percentile
		return domain.RiskScore(hours, &pct, nil, s.cfg.Risk)
	}
	return domain.RiskScore(hours, nil, nil, s.cfg.Risk)
}

// applySide reconciles one side of the book against the chosen level:
// cancels a stale resting order and places a fresh one when the price
// has moved, cancels outright when the side should skip.
func (s *Scheduler) applySide(ctx context.Context, tm *domain.TrackedMarket, side domain.OrderSide, chosen domain.ChosenLevel, now time.Time) {
	live := tm.LiveBuy
	if side == domain.SideSell {
		live = tm.LiveSell
	}

	if chosen.SkipReason != domain.SkipNone {
		if live != nil {
			s.cancelLive(ctx, tm, side)
		}
		return
	}

	if live != nil && domain.ToTick(live.Price) == chosen.Price {
		return // already resting at the desired price; never cancel/replace without cause
	}

	if s.cfg.ImproveOncePerTouch && tm.ImprovedSinceTouch && live != nil {
		// Already improved once since the last touch move; hold position
		// rather than chase every tick.
		return
	}
	if s.cfg.ImproveCooldown > 0 && now.Sub(tm.LastImprovementTS) < s.cfg.ImproveCooldown {
		return
	}

	if live != nil {
		s.cancelLive(ctx, tm, side)
	}

	size := s.quoteSize(tm, side, chosen.Price)
	if size <= 0 {
		return
	}

	orderID, err := s.exchange.PlaceOrder(ctx, ports.OrderRequest{
		Ticker: tm.Market.Ticker, Side: side, Price: chosen.Price, Size: size, TIF: domain.TIFGTC,
	})
	if err != nil {
		slog.Warn("place order failed", "ticker", tm.Market.Ticker, "side", side, "err", err)
		s.breaker.RecordError(classifyErr(err), s.cfg.Breaker, time.Now())
		if s.metrics != nil {
			s.metrics.RecordOrderRejected(ctx, tm.Market.Ticker, err.Error())
		}
		return
	}
	s.breaker.RecordSuccess()
	if s.metrics != nil {
		s.metrics.RecordOrderSent(ctx, tm.Market.Ticker, side, chosen.Price, size)
	}

	newLive := &domain.LiveOrder{OrderID: orderID, Side: side, Price: chosen.Price, RemainingSize: float64(size), SubmitTS: now}
	if side == domain.SideBuy {
		tm.LiveBuy = newLive
	} else {
		tm.LiveSell = newLive
	}
	tm.LastImprovementTS = now
	tm.ImprovedSinceTouch = true
}

// quoteSize starts from the fixed quoteBaseSize and clips to the remaining room
// to MaxPosition under PositionLimitBuffer, a first-fill throttle (a
// market with no observed fill yet quotes at half size until its first
// markout can be measured), and — on the buy side — the affordability
// cap of mm.py's max_affordable_size.
func (s *Scheduler) quoteSize(tm *domain.TrackedMarket, side domain.OrderSide, price float64) int {
	base := quoteBaseSize
	if !tm.FirstFillSeen {
		base = quoteThrottledSize
	}

	limit := int(float64(s.cfg.MaxPosition) * (1 - s.cfg.PositionLimitBuffer))
	if limit <= 0 {
		limit = s.cfg.MaxPosition
	}
	contracts, _ := tm.Inv.Snapshot()

	var room int
	if side == domain.SideBuy {
		room = limit - contracts
	} else {
		room = limit + contracts
	}
	if room <= 0 {
		return 0
	}
	if base > room {
		base = room
	}

	if side == domain.SideBuy {
		if afford := s.affordableSize(price); afford < base {
			base = afford
		}
	}
	return base
}

// affordableSize caps buy size by the configured fraction of available
// cash (mm.py's get_available_cash / max_affordable_size), composed
// with — not replacing — the position-based size policy. Returns a size
// large enough to never bind before the balance has been fetched once.
func (s *Scheduler) affordableSize(price float64) int {
	balance := s.balanceSnapshot()
	if balance < 0 || price <= 0 {
		return quoteBaseSize
	}
	budget := balance * s.cfg.CapitalBudgetFraction
	return int(budget / price)
}

// thinBook reports whether levels (best-first) hold less than minSize
// aggregated across the top few price levels — too little depth to
// quote against even if a qualifying band nominally exists.
func thinBook(levels []domain.BookLevel, minSize float64) bool {
	if minSize <= 0 {
		return false
	}
	const topN = 3
	var total float64
	for i, lvl := range levels {
		if i >= topN {
			break
		}
		total += lvl.Size
	}
	return total < minSize
}

func (s *Scheduler) cancelLive(ctx context.Context, tm *domain.TrackedMarket, side domain.OrderSide) {
	live := tm.LiveBuy
	if side == domain.SideSell {
		live = tm.LiveSell
	}
	if live == nil {
		return
	}
	if err := s.exchange.CancelOrder(ctx, live.OrderID); err != nil {
		slog.Warn("cancel order failed", "ticker", tm.Market.Ticker, "order_id", live.OrderID, "err", err)
		s.breaker.RecordError(classifyErr(err), s.cfg.Breaker, time.Now())
	} else {
		s.breaker.RecordSuccess()
		if s.metrics != nil {
			s.metrics.RecordOrderCanceled(ctx, tm.Market.Ticker, live.OrderID)
		}
	}
	if side == domain.SideBuy {
		tm.LiveBuy = nil
	} else {
		tm.LiveSell = nil
	}
}

// synthesizeAskLevels translates NO-bid levels (best-first, highest
// price first) into their complementary YES-ask levels, which stay
// best-first (lowest price first) since ask = 1 - bid is
// order-reversing.
func synthesizeAskLevels(noBidsBestFirst []domain.BookLevel) []domain.BookLevel {
	out := make([]domain.BookLevel, len(noBidsBestFirst))
	for i, lvl := range noBidsBestFirst {
		out[i] = domain.BookLevel{Price: domain.ToTick(1 - lvl.Price), Size: lvl.Size}
	}
	return out
}

// subscribeMarketStreams runs the book and fill subscriptions for a
// single ticker until ctx is canceled. The reconnect/backoff logic
// lives in the adapter; this loop only dispatches decoded messages.
func (s *Scheduler) subscribeMarketStreams(ctx context.Context, ticker string) {
	bookCh, err := s.exchange.SubscribeOrderBook(ctx, []string{ticker})
	if err != nil {
		slog.Error("subscribe orderbook failed", "ticker", ticker, "err", err)
		return
	}
	fillCh, err := s.exchange.SubscribeFills(ctx, []string{ticker})
	if err != nil {
		slog.Error("subscribe fills failed", "ticker", ticker, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-bookCh:
			if !ok {
				return
			}
			s.applyBookUpdate(ctx, upd)
		case evt, ok := <-fillCh:
			if !ok {
				return
			}
			s.applyFill(ctx, evt)
		}
	}
}

// applyBookUpdate is the C9 dispatcher: mutates the tracked market's
// shared OrderBook, and on resync-needed or a material touch move,
// reacts immediately rather than waiting for the next scheduled tick,
// subject to OrderbookUpdateCooldown. The reactive path touches only
// the ask side (§4.7): the bid side is left for the next tick.
func (s *Scheduler) applyBookUpdate(ctx context.Context, upd ports.BookUpdate) {
	tm := s.trackedSnapshot(upd.Ticker)
	if tm == nil {
		return
	}

	switch upd.Type {
	case ports.BookSnapshotMsg:
		levels := make(map[float64]float64, len(upd.Levels))
		for _, l := range upd.Levels {
			levels[l.Price] = l.Size
		}
		tm.Book.ApplySnapshot(upd.Side, levels, upd.Seq)
	case ports.BookDeltaMsg:
		if !tm.Book.ApplyDelta(upd.Side, upd.Price, upd.Delta, upd.Seq) && tm.Book.NeedsResync() {
			s.resyncBook(ctx, tm)
			return
		}
	}

	now := time.Now()
	tm.Lock()
	if now.Sub(tm.LastReactiveUpdateTS) < s.cfg.OrderbookUpdateCooldown {
		tm.Unlock()
		return
	}
	newTouch := tm.Book.SnapshotTouch()
	touchMoved := newTouch.BestBid != tm.LastTouch.BestBid || newTouch.BestAsk != tm.LastTouch.BestAsk
	if touchMoved {
		tm.ImprovedSinceTouch = false
		tm.LastReactiveUpdateTS = now
	}
	tm.Unlock()

	if touchMoved {
		s.reactiveAskUpdate(ctx, tm, now)
	}
}

// reactiveAskUpdate implements §4.7's reactive path: a touch move
// between ticks updates only the ask side, and only while there is
// inventory to sell off — the bid side is never updated reactively, it
// waits for the next tick.
func (s *Scheduler) reactiveAskUpdate(ctx context.Context, tm *domain.TrackedMarket, now time.Time) {
	tm.Lock()
	defer tm.Unlock()

	contracts, _ := tm.Inv.Snapshot()
	if contracts <= 0 {
		return
	}
	if s.breaker.IsOpen() {
		return
	}

	touch := tm.Book.SnapshotTouch()
	tm.LastTouch = touch

	riskScore := s.riskScoreFor(tm, now)
	askLevels := synthesizeAskLevels(tm.Book.Levels(domain.SideNo))
	if thinBook(askLevels, s.cfg.ThinBookMinSize) {
		s.applySide(ctx, tm, domain.SideSell, domain.ChosenLevel{SkipReason: domain.SkipThinBook}, now)
		return
	}

	target := tm.Market.LIPTarget
	var askBand []domain.BandLevel
	if s.cfg.LIPEnabled {
		askBand = domain.BuildQualifyingBand(askLevels, target, s.cfg.Risk.DiscountFactor)
	} else {
		target = 0
		askBand = []domain.BandLevel{{TicksFromBest: 1}}
	}

	ask := domain.ChooseLevel(domain.QuoteLevelInput{
		Band: askBand, BestPrice: touch.BestAsk, IsBid: false,
		RiskScore: riskScore, Inventory: contracts, MaxPosition: s.cfg.MaxPosition,
		Cfg: s.cfg.Risk, Target: target,
	})
	s.applySide(ctx, tm, domain.SideSell, ask, now)
}

// resyncBook re-fetches a full snapshot over REST after a stream gap,
// per §7's ErrStreamGap handling: resync rather than trip the breaker.
func (s *Scheduler) resyncBook(ctx context.Context, tm *domain.TrackedMarket) {
	snap, err := s.exchange.GetOrderBook(ctx, tm.Market.Ticker)
	if err != nil {
		slog.Warn("resync get_orderbook failed", "ticker", tm.Market.Ticker, "err", err)
		s.breaker.RecordError(domain.ErrStreamGap, s.cfg.Breaker, time.Now())
		return
	}
	s.breaker.RecordSuccess()
	yes := make(map[float64]float64, len(snap.YesBids))
	for _, l := range snap.YesBids {
		yes[l.Price] = l.Size
	}
	no := make(map[float64]float64, len(snap.NoBids))
	for _, l := range snap.NoBids {
		no[l.Price] = l.Size
	}
	tm.Book.ApplySnapshot(domain.SideYes, yes, 0)
	tm.Book.ApplySnapshot(domain.SideNo, no, 0)
}

// applyFill is the C8 dispatcher: applies the fill to inventory
// idempotently, clears/shrinks the matching live order, and records the
// first-fill-seen flag that lifts the size throttle.
func (s *Scheduler) applyFill(ctx context.Context, evt ports.FillEvent) {
	tm := s.trackedSnapshot(evt.Ticker)
	if tm == nil {
		return
	}

	tm.Lock()
	defer tm.Unlock()

	tm.Inv.ApplyFill(domain.Fill{OrderID: evt.OrderID, Side: evt.Side, Price: evt.Price, Size: evt.Size, FillIndex: evt.FillIndex})
	tm.FirstFillSeen = true

	live := tm.LiveBuy
	if evt.Side == domain.SideSell {
		live = tm.LiveSell
	}
	if live != nil && live.OrderID == evt.OrderID {
		live.RemainingSize -= float64(evt.Size)
		if live.RemainingSize <= 0 {
			if evt.Side == domain.SideBuy {
				tm.LiveBuy = nil
			} else {
				tm.LiveSell = nil
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordFill(ctx, evt.Ticker, domain.Fill{OrderID: evt.OrderID, Side: evt.Side, Price: evt.Price, Size: evt.Size, FillIndex: evt.FillIndex})
		contracts, pnl := tm.Inv.Snapshot()
		s.metrics.RecordInventoryChange(ctx, evt.Ticker, contracts, pnl)
	}

	_, pnl := tm.Inv.Snapshot()
	s.breaker.CheckPnL(pnl, s.cfg.Breaker, time.Now())

	if s.cfg.MarkoutHorizon > 0 {
		ticker, side, price := evt.Ticker, evt.Side, evt.Price
		time.AfterFunc(s.cfg.MarkoutHorizon, func() {
			s.evaluateMarkout(ticker, side, price)
		})
	}
}

// evaluateMarkout runs MarkoutHorizon after a fill: compares the fill's
// entry price against the YES mid at that point to fold one realized
// markout observation into the ticker's EMA, bumping or decaying
// EdgeBonus/WidthBonus (domain.UpdateMarkoutEMA).
func (s *Scheduler) evaluateMarkout(ticker string, side domain.OrderSide, entryPrice float64) {
	tm := s.trackedSnapshot(ticker)
	if tm == nil {
		return
	}

	tm.Lock()
	defer tm.Unlock()

	mid := (tm.Book.BestYesBid() + tm.Book.BestYesAsk()) / 2
	sign := 1.0
	if side == domain.SideSell {
		sign = -1.0
	}
	realized := sign * (mid - entryPrice)

	tm.MarkoutEMA, tm.EdgeBonus, tm.WidthBonus = domain.UpdateMarkoutEMA(tm.MarkoutEMA, tm.EdgeBonus, tm.WidthBonus, realized, s.cfg.Markout)
}
