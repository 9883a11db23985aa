package storage

// sqlite.go — circuit breaker persistence and order/fill metrics history,
// pure-Go SQLite (no CGo). Writes are few and small: one row per breaker
// state change, one row per order/fill event emitted by the metrics
// recorder. There is no per-tick write path.

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polybot/internal/domain"
	"github.com/alejandrodnm/polybot/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS breaker_state (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    is_open     INTEGER NOT NULL DEFAULT 0,
    trip_reason TEXT    NOT NULL DEFAULT '',
    trip_ts     DATETIME
);

CREATE TABLE IF NOT EXISTS order_events (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ts        DATETIME NOT NULL,
    ticker    TEXT     NOT NULL,
    kind      TEXT     NOT NULL, -- sent|acknowledged|rejected|canceled
    side      TEXT     NOT NULL DEFAULT '',
    price     REAL     NOT NULL DEFAULT 0,
    size      INTEGER  NOT NULL DEFAULT 0,
    order_id  TEXT     NOT NULL DEFAULT '',
    reason    TEXT     NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fill_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         DATETIME NOT NULL,
    ticker     TEXT     NOT NULL,
    order_id   TEXT     NOT NULL,
    side       TEXT     NOT NULL,
    price      REAL     NOT NULL,
    size       INTEGER  NOT NULL,
    fill_index INTEGER  NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      DATETIME NOT NULL,
    level   TEXT     NOT NULL,
    ticker  TEXT     NOT NULL DEFAULT '',
    message TEXT     NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ts           DATETIME NOT NULL,
    ticker       TEXT     NOT NULL,
    contracts    INTEGER  NOT NULL,
    realized_pnl REAL     NOT NULL
);

CREATE TABLE IF NOT EXISTS api_errors (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    ts   DATETIME NOT NULL,
    kind TEXT     NOT NULL
);

CREATE TABLE IF NOT EXISTS quote_latency_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         DATETIME NOT NULL,
    ticker     TEXT     NOT NULL,
    latency_ms REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_events_ticker     ON order_events(ticker, ts DESC);
CREATE INDEX IF NOT EXISTS idx_fill_events_ticker      ON fill_events(ticker, ts DESC);
CREATE INDEX IF NOT EXISTS idx_inventory_events_ticker ON inventory_events(ticker, ts DESC);
`

// SQLiteStore implements ports.BreakerStorage, ports.MetricsSink and
// ports.AlertSink using SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveBreakerState upserts the single persisted breaker row.
func (s *SQLiteStore) SaveBreakerState(ctx context.Context, state domain.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO breaker_state (id, is_open, trip_reason, trip_ts) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_open     = excluded.is_open,
			trip_reason = excluded.trip_reason,
			trip_ts     = excluded.trip_ts
	`, boolToInt(state.IsOpen), state.TripReason, state.TripTS)
	if err != nil {
		return fmt.Errorf("storage.SaveBreakerState: %w", err)
	}
	return nil
}

// LoadBreakerState returns the persisted breaker row, or a closed zero
// state if none has been written yet.
func (s *SQLiteStore) LoadBreakerState(ctx context.Context) (domain.State, error) {
	var state domain.State
	var isOpen int
	row := s.db.QueryRowContext(ctx, `SELECT is_open, trip_reason, trip_ts FROM breaker_state WHERE id = 1`)
	err := row.Scan(&isOpen, &state.TripReason, &state.TripTS)
	if err == sql.ErrNoRows {
		return domain.State{}, nil
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("storage.LoadBreakerState: %w", err)
	}
	state.IsOpen = isOpen == 1
	return state, nil
}

func (s *SQLiteStore) recordOrderEvent(ctx context.Context, ticker, kind, side string, price float64, size int, orderID, reason string) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO order_events (ts, ticker, kind, side, price, size, order_id, reason) VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?)`,
		ticker, kind, side, price, size, orderID, reason,
	)
}

// RecordOrderSent persists a "sent" order event.
func (s *SQLiteStore) RecordOrderSent(ctx context.Context, ticker string, side domain.OrderSide, price float64, size int) {
	s.recordOrderEvent(ctx, ticker, "sent", sideLabel(side), price, size, "", "")
}

// RecordOrderAcknowledged persists an "acknowledged" order event.
func (s *SQLiteStore) RecordOrderAcknowledged(ctx context.Context, ticker, orderID string) {
	s.recordOrderEvent(ctx, ticker, "acknowledged", "", 0, 0, orderID, "")
}

// RecordOrderRejected persists a "rejected" order event.
func (s *SQLiteStore) RecordOrderRejected(ctx context.Context, ticker, reason string) {
	s.recordOrderEvent(ctx, ticker, "rejected", "", 0, 0, "", reason)
}

// RecordOrderCanceled persists a "canceled" order event.
func (s *SQLiteStore) RecordOrderCanceled(ctx context.Context, ticker, orderID string) {
	s.recordOrderEvent(ctx, ticker, "canceled", "", 0, 0, orderID, "")
}

// RecordFill persists a fill event.
func (s *SQLiteStore) RecordFill(ctx context.Context, ticker string, f domain.Fill) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO fill_events (ts, ticker, order_id, side, price, size, fill_index) VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?)`,
		ticker, f.OrderID, sideLabel(f.Side), f.Price, f.Size, f.FillIndex,
	)
}

// RecordInventoryChange persists an inventory/PnL snapshot taken after a fill.
func (s *SQLiteStore) RecordInventoryChange(ctx context.Context, ticker string, contracts int, realizedPnL float64) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO inventory_events (ts, ticker, contracts, realized_pnl) VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`,
		ticker, contracts, realizedPnL,
	)
}

// RecordAPIError persists a classified transport/API error.
func (s *SQLiteStore) RecordAPIError(ctx context.Context, kind domain.ErrorKind) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO api_errors (ts, kind) VALUES (CURRENT_TIMESTAMP, ?)`,
		kind.String(),
	)
}

// RecordQuoteLatency persists a place_order round-trip latency sample.
func (s *SQLiteStore) RecordQuoteLatency(ctx context.Context, ticker string, latencyMs float64) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO quote_latency_events (ts, ticker, latency_ms) VALUES (CURRENT_TIMESTAMP, ?, ?)`,
		ticker, latencyMs,
	)
}

// WriteAlert persists an alert record, implementing ports.AlertSink.
func (s *SQLiteStore) WriteAlert(ctx context.Context, a ports.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, level, ticker, message) VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`,
		a.Level.String(), a.Ticker, a.Message,
	)
	if err != nil {
		return fmt.Errorf("storage.WriteAlert: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sideLabel(side domain.OrderSide) string {
	if side == domain.SideBuy {
		return "buy"
	}
	return "sell"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
