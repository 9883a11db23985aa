package engine

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

// fakeExchange is an in-memory ExchangeClient double for scheduler tests.
type fakeExchange struct {
	mu sync.Mutex

	markets      []ports.MarketInfo
	book         ports.BookSnapshot
	candles      []domain.Candle
	lipTarget    int
	placeErr     error
	cancelErr    error
	placedOrders []ports.OrderRequest
	canceledIDs  []string
	nextOrderID  int
	balance      float64
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req ports.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.nextOrderID++
	f.placedOrders = append(f.placedOrders, req)
	return "order-" + string(rune('0'+f.nextOrderID)), nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceledIDs = append(f.canceledIDs, orderID)
	return nil
}

func (f *fakeExchange) GetOrderBook(context.Context, string) (ports.BookSnapshot, error) {
	return f.book, nil
}

func (f *fakeExchange) GetCandles(context.Context, string, time.Time, time.Time, time.Duration) ([]domain.Candle, error) {
	return f.candles, nil
}

func (f *fakeExchange) GetValidMarkets(context.Context) ([]ports.MarketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markets, nil
}

func (f *fakeExchange) GetLIPTarget(context.Context, string) (int, error) {
	return f.lipTarget, nil
}

func (f *fakeExchange) ListOpenOrders(context.Context) ([]ports.OpenOrder, error) {
	return nil, nil
}

func (f *fakeExchange) GetBalance(context.Context) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) SubscribeOrderBook(ctx context.Context, _ []string) (<-chan ports.BookUpdate, error) {
	ch := make(chan ports.BookUpdate)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

func (f *fakeExchange) SubscribeFills(ctx context.Context, _ []string) (<-chan ports.FillEvent, error) {
	ch := make(chan ports.FillEvent)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

type fakeBreakerStorage struct {
	mu    sync.Mutex
	state domain.State
}

func (f *fakeBreakerStorage) SaveBreakerState(_ context.Context, state domain.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	return nil
}

func (f *fakeBreakerStorage) LoadBreakerState(context.Context) (domain.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

type fakeMetrics struct {
	mu    sync.Mutex
	fills int
}

func (f *fakeMetrics) RecordOrderSent(context.Context, string, domain.OrderSide, float64, int)    {}
func (f *fakeMetrics) RecordOrderAcknowledged(context.Context, string, string)                    {}
func (f *fakeMetrics) RecordOrderRejected(context.Context, string, string)                        {}
func (f *fakeMetrics) RecordOrderCanceled(context.Context, string, string)                        {}
func (f *fakeMetrics) RecordFill(context.Context, string, domain.Fill) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills++
}
func (f *fakeMetrics) RecordInventoryChange(context.Context, string, int, float64) {}
func (f *fakeMetrics) RecordAPIError(context.Context, domain.ErrorKind)            {}
func (f *fakeMetrics) RecordQuoteLatency(context.Context, string, float64)         {}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []ports.Alert
}

func (f *fakeAlerts) WriteAlert(_ context.Context, a ports.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	tickRows  [][]ports.MarketDashboardRow
	tripCount int
}

func (f *fakeNotifier) NotifyTick(_ context.Context, rows []ports.MarketDashboardRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickRows = append(f.tickRows, rows)
	return nil
}

func (f *fakeNotifier) NotifyBreakerTrip(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tripCount++
	return nil
}

func newTestScheduler(exch *fakeExchange) (*Scheduler, *fakeBreakerStorage, *fakeMetrics, *fakeAlerts, *fakeNotifier) {
	storage := &fakeBreakerStorage{}
	metrics := &fakeMetrics{}
	alerts := &fakeAlerts{}
	notifier := &fakeNotifier{}
	cfg := DefaultConfig()
	s := NewScheduler(cfg, exch, storage, metrics, alerts, notifier)
	return s, storage, metrics, alerts, notifier
}
