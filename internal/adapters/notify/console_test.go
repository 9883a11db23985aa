package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/ports"
)

func TestNotifyTickPrintsEmptyMessage(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	require.NoError(t, c.NotifyTick(context.Background(), nil))
	require.Contains(t, buf.String(), "no tracked markets")
}

func TestNotifyTickRendersTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	rows := []ports.MarketDashboardRow{
		{Ticker: "PRES-2028", State: "quoting", BestBid: 0.49, BestAsk: 0.51, Inventory: 10, RealizedPnL: 1.25, RiskScore: 1.2, RiskBucket: "join_touch"},
	}
	require.NoError(t, c.NotifyTick(context.Background(), rows))
	require.Contains(t, buf.String(), "PRES-2028")
}

func TestNotifyBreakerTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	require.NoError(t, c.NotifyBreakerTrip(context.Background(), "pnl_threshold"))
	require.Contains(t, buf.String(), "pnl_threshold")
}
