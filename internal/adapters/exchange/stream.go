package exchange

// stream.go — order-book and fill WebSocket subscriptions (C9/C8):
// exponential-backoff reconnect (1s→30s cap), resubscribe to the
// current ticker set on reconnect, and a typed message dispatch.

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

const (
	wsReconnectStart = 1 * time.Second
	wsReconnectCap   = 30 * time.Second
)

type bookWireMsg struct {
	Type   string          `json:"type"`
	Ticker string          `json:"ticker"`
	Side   string          `json:"side"`
	Levels []bookLevelWire `json:"levels,omitempty"`
	Price  float64         `json:"price,omitempty"`
	Delta  float64         `json:"delta,omitempty"`
	Seq    int64           `json:"seq"`
}

type fillWireMsg struct {
	Ticker    string  `json:"ticker"`
	OrderID   string  `json:"order_id"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      int     `json:"size"`
	TS        int64   `json:"ts"`
	FillIndex int64   `json:"fill_index"`
}

// SubscribeOrderBook opens the order-book stream for tickers and
// returns a channel of decoded updates. The channel is closed when ctx
// is canceled; a dropped connection reconnects and resubscribes
// transparently, the caller never observes the gap beyond a possible
// delay and a subsequent resync (handled by the caller via
// domain.OrderBook.NeedsResync).
func (c *Client) SubscribeOrderBook(ctx context.Context, tickers []string) (<-chan ports.BookUpdate, error) {
	out := make(chan ports.BookUpdate, 256)
	handle := func(raw []byte) {
		var msg bookWireMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("orderbook stream: malformed message", "err", err)
			return
		}
		upd := ports.BookUpdate{
			Ticker: msg.Ticker,
			Side:   sideFromWire(msg.Side),
			Price:  msg.Price,
			Delta:  msg.Delta,
			Seq:    msg.Seq,
		}
		if msg.Type == "snapshot" {
			upd.Type = ports.BookSnapshotMsg
			upd.Levels = toBookLevels(msg.Levels)
		} else {
			upd.Type = ports.BookDeltaMsg
		}
		select {
		case out <- upd:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(out)
		c.runStream(ctx, "/stream/orderbook", tickers, handle)
	}()
	return out, nil
}

// SubscribeFills opens the fill stream for tickers.
func (c *Client) SubscribeFills(ctx context.Context, tickers []string) (<-chan ports.FillEvent, error) {
	out := make(chan ports.FillEvent, 256)
	go c.runStream(ctx, "/stream/fills", tickers, func(raw []byte) {
		var msg fillWireMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("fill stream: malformed message", "err", err)
			return
		}
		side := domain.SideBuy
		if msg.Side == "sell" {
			side = domain.SideSell
		}
		evt := ports.FillEvent{
			Ticker:    msg.Ticker,
			OrderID:   msg.OrderID,
			Side:      side,
			Price:     msg.Price,
			Size:      msg.Size,
			TS:        time.Unix(msg.TS, 0).UTC(),
			FillIndex: msg.FillIndex,
		}
		select {
		case out <- evt:
		case <-ctx.Done():
		}
	})
	return out, nil
}

func sideFromWire(s string) domain.Side {
	if s == "no" {
		return domain.SideNo
	}
	return domain.SideYes
}

type subscribeRequest struct {
	Tickers []string `json:"tickers"`
}

// runStream owns one long-lived connection: dial, subscribe, read loop,
// reconnect with exponential backoff on any error. It never returns
// except when ctx is canceled.
func (c *Client) runStream(ctx context.Context, path string, tickers []string, handle func([]byte)) {
	delay := wsReconnectStart
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(c.baseURL)+path, nil)
		if err != nil {
			slog.Warn("stream dial failed, backing off", "path", path, "delay", delay, "err", err)
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextBackoff(delay)
			continue
		}

		if err := conn.WriteJSON(subscribeRequest{Tickers: tickers}); err != nil {
			conn.Close()
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextBackoff(delay)
			continue
		}

		delay = wsReconnectStart // reset once a connection is established
		readLoop(ctx, conn, handle)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if !sleepOrDone(ctx, delay) {
			return
		}
		delay = nextBackoff(delay)
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, handle func([]byte)) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > wsReconnectCap {
		return wsReconnectCap
	}
	return d
}

func wsURL(httpBase string) string {
	switch {
	case len(httpBase) >= 8 && httpBase[:8] == "https://":
		return "wss://" + httpBase[8:]
	case len(httpBase) >= 7 && httpBase[:7] == "http://":
		return "ws://" + httpBase[7:]
	default:
		return httpBase
	}
}
