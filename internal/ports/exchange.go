package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
)

// BookSnapshot is the get_orderbook response shape: best-effort resting
// size at each price level, per side.
type BookSnapshot struct {
	YesBids []domain.BookLevel
	NoBids  []domain.BookLevel
}

// MarketInfo is one entry of get_valid_markets.
type MarketInfo struct {
	Ticker    string
	CloseTS   time.Time
	LIPTarget float64
	// YesMid is the last known YES mid price, used by discovery to skip
	// markets already sitting at an extreme (near-resolved) price. Zero
	// means the venue didn't report one yet.
	YesMid float64
	// Toxic is the venue's own historical-toxicity flag for this ticker,
	// an opaque boolean the universe endpoint reports without further
	// detail.
	Toxic bool
}

// OrderRequest is the place_order argument set.
type OrderRequest struct {
	Ticker string
	Side   domain.OrderSide
	Price  float64
	Size   int
	TIF    domain.TimeInForce
}

// ExchangeClient is the abstract transport contract of §6: REST calls
// for placement, cancellation, market discovery, and volatility input,
// plus the two long-lived subscriptions consumed by C8/C9. Any concrete
// transport (REST+WS, FIX, a simulator) implements this directly.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderBook(ctx context.Context, ticker string) (BookSnapshot, error)
	GetCandles(ctx context.Context, ticker string, start, end time.Time, period time.Duration) ([]domain.Candle, error)
	GetValidMarkets(ctx context.Context) ([]MarketInfo, error)
	GetLIPTarget(ctx context.Context, ticker string) (int, error)
	ListOpenOrders(ctx context.Context) ([]OpenOrder, error)
	GetBalance(ctx context.Context) (float64, error)

	SubscribeOrderBook(ctx context.Context, tickers []string) (<-chan BookUpdate, error)
	SubscribeFills(ctx context.Context, tickers []string) (<-chan FillEvent, error)
}

// BookUpdate is one message off the order-book stream (C9): either a
// full snapshot for a side or an incremental delta.
type BookUpdate struct {
	Type   BookUpdateType
	Ticker string
	Side   domain.Side
	// Levels is populated for Type == BookSnapshotMsg.
	Levels []domain.BookLevel
	// Price/Delta are populated for Type == BookDeltaMsg.
	Price float64
	Delta float64
	Seq   int64
}

type BookUpdateType int

const (
	BookSnapshotMsg BookUpdateType = iota
	BookDeltaMsg
)

// OpenOrder is one of the account's currently resting orders, as
// returned by ListOpenOrders — used by operator tooling that needs to
// sweep every resting order rather than just the ones this process
// remembers placing.
type OpenOrder struct {
	OrderID string
	Ticker  string
	Side    domain.OrderSide
	Price   float64
	Size    int
}

// FillEvent is one message off the fill stream (C8).
type FillEvent struct {
	Ticker    string
	OrderID   string
	Side      domain.OrderSide
	Price     float64
	Size      int
	TS        time.Time
	FillIndex int64
}
