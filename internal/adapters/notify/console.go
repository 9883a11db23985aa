package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polybot/internal/ports"
)

// Console implements ports.Notifier by printing a tracked-market table
// to an io.Writer on every tick.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) NotifyTick(_ context.Context, rows []ports.MarketDashboardRow) error {
	if len(rows) == 0 {
		fmt.Fprintf(c.out, "[%s] no tracked markets\n", time.Now().Format("15:04:05"))
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "State", "Bid", "Ask", "Inv", "PnL", "Risk", "Bucket")

	for _, r := range rows {
		table.Append(
			r.Ticker,
			r.State,
			fmt.Sprintf("%.2f", r.BestBid),
			fmt.Sprintf("%.2f", r.BestAsk),
			fmt.Sprintf("%d", r.Inventory),
			fmt.Sprintf("%.4f", r.RealizedPnL),
			fmt.Sprintf("%.2f", r.RiskScore),
			r.RiskBucket,
		)
	}

	table.Render()
	return nil
}

func (c *Console) NotifyBreakerTrip(_ context.Context, reason string) error {
	_, err := fmt.Fprintf(c.out, "[%s] circuit breaker tripped: %s\n", time.Now().Format("15:04:05"), reason)
	return err
}
