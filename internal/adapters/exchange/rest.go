package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

type placeOrderBody struct {
	Ticker    string  `json:"ticker"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      int     `json:"size"`
	TIF       string  `json:"time_in_force"`
	Signature string  `json:"signature,omitempty"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceOrder submits a limit order. The caller is responsible for
// ensuring price is already tick-snapped and within [0.01, 0.99].
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	body := placeOrderBody{
		Ticker: req.Ticker,
		Side:   sideWire(req.Side),
		Price:  req.Price,
		Size:   req.Size,
		TIF:    tifWire(req.TIF),
	}
	if c.signer != nil {
		sig, err := c.signer.Sign(ctx, domain.LiveOrder{Ticker: req.Ticker, Side: req.Side, Price: req.Price, RemainingSize: float64(req.Size)})
		if err != nil {
			return "", domain.NewAPIError(domain.ErrInternal, "", fmt.Errorf("sign order: %w", err))
		}
		body.Signature = sig
	}

	var resp placeOrderResponse
	if err := c.post(ctx, c.tradingLimiter, "/orders", body, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// CancelOrder cancels a resting order. A NotFound response is treated
// as success here, per §7 ("NotFound on cancel is success"): it returns nil.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.post(ctx, c.tradingLimiter, "/orders/"+orderID+"/cancel", struct{}{}, nil)
	if apiErr, ok := err.(*domain.APIError); ok && apiErr.Kind == domain.ErrNotFound {
		return nil
	}
	return err
}

type bookLevelWire struct {
	Price float64 `json:"price"`
	Count float64 `json:"count"`
}

type orderBookResponse struct {
	YesBids []bookLevelWire `json:"yes_bids"`
	NoBids  []bookLevelWire `json:"no_bids"`
}

func (c *Client) GetOrderBook(ctx context.Context, ticker string) (ports.BookSnapshot, error) {
	var resp orderBookResponse
	if err := c.get(ctx, c.marketLimiter, "/markets/"+ticker+"/orderbook", &resp); err != nil {
		return ports.BookSnapshot{}, err
	}
	return ports.BookSnapshot{
		YesBids: toBookLevels(resp.YesBids),
		NoBids:  toBookLevels(resp.NoBids),
	}, nil
}

func toBookLevels(wire []bookLevelWire) []domain.BookLevel {
	out := make([]domain.BookLevel, len(wire))
	for i, w := range wire {
		out[i] = domain.BookLevel{Price: w.Price, Size: w.Count}
	}
	return out
}

type candleWire struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	TS    int64   `json:"ts"`
}

func (c *Client) GetCandles(ctx context.Context, ticker string, start, end time.Time, period time.Duration) ([]domain.Candle, error) {
	path := fmt.Sprintf("/markets/%s/candles?start_ts=%d&end_ts=%d&period_seconds=%d",
		ticker, start.Unix(), end.Unix(), int(period.Seconds()))
	var wire []candleWire
	if err := c.get(ctx, c.marketLimiter, path, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Candle, len(wire))
	for i, w := range wire {
		out[i] = domain.Candle{Open: w.Open, High: w.High, Low: w.Low, Close: w.Close, TS: time.Unix(w.TS, 0).UTC()}
	}
	return out, nil
}

type marketWire struct {
	Ticker    string  `json:"ticker"`
	CloseTS   int64   `json:"close_ts"`
	LIPTarget float64 `json:"lip_target"`
	YesMid    float64 `json:"yes_mid"`
	Toxic     bool    `json:"toxic"`
}

func (c *Client) GetValidMarkets(ctx context.Context) ([]ports.MarketInfo, error) {
	var wire []marketWire
	if err := c.get(ctx, c.marketLimiter, "/markets?status=open", &wire); err != nil {
		return nil, err
	}
	out := make([]ports.MarketInfo, len(wire))
	for i, w := range wire {
		out[i] = ports.MarketInfo{
			Ticker:    w.Ticker,
			CloseTS:   time.Unix(w.CloseTS, 0).UTC(),
			LIPTarget: w.LIPTarget,
			YesMid:    w.YesMid,
			Toxic:     w.Toxic,
		}
	}
	return out, nil
}

type lipTargetResponse struct {
	Target int `json:"target"`
}

func (c *Client) GetLIPTarget(ctx context.Context, ticker string) (int, error) {
	var resp lipTargetResponse
	if err := c.get(ctx, c.marketLimiter, "/markets/"+ticker+"/lip_target", &resp); err != nil {
		return 0, err
	}
	return resp.Target, nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// GetBalance returns the available cash balance backing affordability
// caps on order size (mm.py's get_available_cash).
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := c.get(ctx, c.marketLimiter, "/account/balance", &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

type openOrderWire struct {
	OrderID string  `json:"order_id"`
	Ticker  string  `json:"ticker"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    int     `json:"size"`
}

// ListOpenOrders returns every order currently resting on the account,
// regardless of which process placed it — used by operator tooling
// (cancel-all) rather than the scheduler, which tracks its own orders.
func (c *Client) ListOpenOrders(ctx context.Context) ([]ports.OpenOrder, error) {
	var wire []openOrderWire
	if err := c.get(ctx, c.marketLimiter, "/orders?status=open", &wire); err != nil {
		return nil, err
	}
	out := make([]ports.OpenOrder, len(wire))
	for i, w := range wire {
		out[i] = ports.OpenOrder{OrderID: w.OrderID, Ticker: w.Ticker, Side: sideFromOrderWire(w.Side), Price: w.Price, Size: w.Size}
	}
	return out, nil
}

func sideFromOrderWire(s string) domain.OrderSide {
	if s == "sell" {
		return domain.SideSell
	}
	return domain.SideBuy
}

func sideWire(s domain.OrderSide) string {
	if s == domain.SideBuy {
		return "buy"
	}
	return "sell"
}

func tifWire(t domain.TimeInForce) string {
	if t == domain.TIFIOC {
		return "IOC"
	}
	return "GTC"
}
