package alerting

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/ports"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []ports.Alert
}

func (r *recordingSink) WriteAlert(_ context.Context, a ports.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func TestSendPersistsToSink(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	m.Send(context.Background(), ports.AlertCritical, "PRES-2028", "circuit breaker tripped")

	require.Len(t, sink.alerts, 1)
	require.Equal(t, ports.AlertCritical, sink.alerts[0].Level)
	require.Equal(t, "PRES-2028", sink.alerts[0].Ticker)
}

func TestSendWithNilSinkDoesNotPanic(t *testing.T) {
	m := New(nil)
	require.NotPanics(t, func() {
		m.Send(context.Background(), ports.AlertInfo, "", "heartbeat")
	})
}

func TestWriteAlertSatisfiesAlertSink(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)
	var asSink ports.AlertSink = m

	require.NoError(t, asSink.WriteAlert(context.Background(), ports.Alert{Level: ports.AlertWarning, Message: "x"}))
	require.Len(t, sink.alerts, 1)
}
