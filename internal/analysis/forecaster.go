// Package analysis composes indicators, signals and the predictor into one
// per-ticker AnalysisResult, persists it, and serves the top-movers snapshot.
package analysis

import (
	"context"
	"time"

	"stockpulse/internal/model"
)

// Request is a validated analysis request.
type Request struct {
	Ticker   string
	Start    time.Time
	End      time.Time
	Lookback int
}

// StartDate formats Start as YYYY-MM-DD.
func (r Request) StartDate() string { return r.Start.Format(model.DateLayout) }

// EndDate formats End as YYYY-MM-DD.
func (r Request) EndDate() string { return r.End.Format(model.DateLayout) }

// Forecaster produces an AnalysisResult for one request. Implementations
// report ErrDataUnavailable, ErrInsufficientHistory or ErrAnalysisFailed.
type Forecaster interface {
	Name() string
	Forecast(ctx context.Context, req Request) (*model.AnalysisResult, error)
}

// nextBusinessDay returns the first weekday after t.
func nextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
