// Package notification delivers top-mover alerts to external channels.
package notification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level         AlertLevel   `json:"level"`
	Title         string       `json:"title"`
	Message       string       `json:"message"`
	Ticker        string       `json:"ticker"`
	Price         float64      `json:"price"`
	ChangePercent float64      `json:"change_percent"`
	Signal        model.Signal `json:"signal"`
	Source        string       `json:"source"` // analysis | refresh
	At            time.Time    `json:"ts"`
}

// TopMoverAlert builds the alert sent when a ticker is newly flagged.
// Moves beyond twice the threshold are raised as warnings.
func TopMoverAlert(st *model.StockState, source string) Alert {
	level := AlertInfo
	if math.Abs(st.ChangePercent) > 2*model.TopMoverThreshold {
		level = AlertWarning
	}
	return Alert{
		Level:         level,
		Title:         fmt.Sprintf("%s is a top mover", st.Ticker),
		Message:       fmt.Sprintf("%s %+.2f%% at %.2f, signal %s", st.Ticker, st.ChangePercent, st.LastPrice, st.Signal.OrNeutral()),
		Ticker:        st.Ticker,
		Price:         st.LastPrice,
		ChangePercent: st.ChangePercent,
		Signal:        st.Signal.OrNeutral(),
		Source:        source,
		At:            st.UpdatedAt,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log (useful for development).
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info().
		Str("level", string(alert.Level)).
		Str("ticker", alert.Ticker).
		Float64("change_percent", alert.ChangePercent).
		Str("source", alert.Source).
		Msg(alert.Title)
	return nil
}
