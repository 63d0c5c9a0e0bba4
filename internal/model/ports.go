package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These decouple the analysis and broadcast logic from the concrete
// provider and storage implementations (Yahoo, Redis, SQLite, memory).

// QuoteProvider supplies live quotes and daily history. Both calls are
// treated as unreliable: callers decide whether absence is fatal.
type QuoteProvider interface {
	// Quote returns the latest quote, or an error wrapping ErrDataUnavailable.
	Quote(ctx context.Context, ticker string) (Quote, error)

	// History returns daily bars in [start, end], oldest first.
	History(ctx context.Context, ticker string, start, end time.Time) (PriceSeries, error)
}

// UpdateFunc mutates a StockState inside an atomic read-modify-write.
// The state is zero-valued (with Ticker set) when the ticker is new.
type UpdateFunc func(s *StockState) error

// StockStore holds per-ticker StockState.
type StockStore interface {
	// Get returns the state for ticker, or an error wrapping ErrNotFound.
	Get(ctx context.Context, ticker string) (*StockState, error)

	// Update applies fn atomically per ticker and returns the stored result.
	// Concurrent updates to the same ticker never interleave.
	Update(ctx context.Context, ticker string, fn UpdateFunc) (*StockState, error)

	// Recent returns states most-recently-updated first.
	Recent(ctx context.Context) ([]StockState, error)

	// Close releases underlying resources.
	Close() error
}

// AnalysisRun is one journaled analysis.
type AnalysisRun struct {
	ID            int64     `json:"id"`
	Ticker        string    `json:"ticker"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	Forecaster    string    `json:"forecaster"`
	Observations  int       `json:"observations"`
	ForecastPrice float64   `json:"forecast_price"`
	Accuracy      *float64  `json:"accuracy_percent"`
	NextDate      string    `json:"next_date"`
	NextSignal    Signal    `json:"next_signal"`
	ChangePercent float64   `json:"change_percent"`
	TraceID       string    `json:"trace_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RunJournal durably records analysis runs.
type RunJournal interface {
	Record(ctx context.Context, run AnalysisRun) error
	Runs(ctx context.Context, ticker string, limit int) ([]AnalysisRun, error)
	Close() error
}
