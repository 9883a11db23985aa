package alerting

// alerting.go — operator alerting, grounded on the source's
// AlertManager: every alert is durably recorded (here, via the storage
// adapter's alerts table rather than a local JSONL file) and logged at
// a level matching its severity.

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polybot/internal/ports"
)

// Manager dispatches alerts to a durable sink and to the process log,
// choosing the log level by the alert's severity.
type Manager struct {
	sink ports.AlertSink
}

// New wraps sink. sink may be nil, in which case alerts are only logged.
func New(sink ports.AlertSink) *Manager {
	return &Manager{sink: sink}
}

// Send records and logs an alert.
func (m *Manager) Send(ctx context.Context, level ports.AlertLevel, ticker, message string) {
	a := ports.Alert{Level: level, Ticker: ticker, Message: message}

	if m.sink != nil {
		if err := m.sink.WriteAlert(ctx, a); err != nil {
			slog.Error("failed to persist alert", "err", err)
		}
	}

	switch level {
	case ports.AlertCritical:
		slog.Error(message, "ticker", ticker, "alert_level", "critical")
	case ports.AlertWarning:
		slog.Warn(message, "ticker", ticker, "alert_level", "warning")
	default:
		slog.Info(message, "ticker", ticker, "alert_level", "info")
	}
}

// WriteAlert implements ports.AlertSink directly, so a Manager can be
// handed to callers (like the engine scheduler) expecting that
// interface without exposing Send's extra logging-level dispatch.
func (m *Manager) WriteAlert(ctx context.Context, a ports.Alert) error {
	m.Send(ctx, a.Level, a.Ticker, a.Message)
	return nil
}
