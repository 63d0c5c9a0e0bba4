package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
)

// TopMoverAlerter sends a TopMoverAlert and only logs delivery failures.
// A nil *TopMoverAlerter is a no-op.
type TopMoverAlerter struct {
	n       Notifier
	m       *metrics.Metrics
	log     zerolog.Logger
	timeout time.Duration
}

// NewTopMoverAlerter wraps n. A nil n disables alerting.
func NewTopMoverAlerter(n Notifier, m *metrics.Metrics, log zerolog.Logger) *TopMoverAlerter {
	if n == nil {
		return nil
	}
	return &TopMoverAlerter{n: n, m: m, log: log, timeout: 10 * time.Second}
}

// Notify delivers the alert for st synchronously.
func (a *TopMoverAlerter) Notify(ctx context.Context, st *model.StockState, source string) {
	if a == nil || st == nil {
		return
	}
	a.m.IncTopMoverAlert()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.n.Send(ctx, TopMoverAlert(st, source)); err != nil {
		a.log.Warn().Err(err).Str("ticker", st.Ticker).Msg("top mover alert failed")
	}
}
