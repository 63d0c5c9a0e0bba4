// Package sqlite keeps a durable journal of analysis runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"stockpulse/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker         TEXT NOT NULL,
	start_date     TEXT NOT NULL,
	end_date       TEXT NOT NULL,
	forecaster     TEXT NOT NULL,
	observations   INTEGER NOT NULL,
	forecast_price REAL NOT NULL,
	accuracy       REAL,
	next_date      TEXT NOT NULL,
	next_signal    TEXT NOT NULL,
	change_percent REAL NOT NULL,
	trace_id       TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_ticker ON analysis_runs(ticker, id);
`

// Journal persists analysis runs to SQLite for audit.
type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the journal database at path.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	j := &Journal{db: db, log: log.With().Str("component", "journal").Logger()}
	j.log.Info().Str("path", path).Msg("opened analysis journal")
	return j, nil
}

// DB returns the underlying handle for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Record appends one run.
func (j *Journal) Record(ctx context.Context, run model.AnalysisRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var accuracy sql.NullFloat64
	if run.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *run.Accuracy, Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (ticker, start_date, end_date, forecaster, observations,
			forecast_price, accuracy, next_date, next_signal, change_percent, trace_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(run.Ticker),
		run.StartDate,
		run.EndDate,
		run.Forecaster,
		run.Observations,
		run.ForecastPrice,
		accuracy,
		run.NextDate,
		string(run.NextSignal),
		run.ChangePercent,
		run.TraceID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.Ticker, err)
	}
	return nil
}

// Runs returns the last limit runs for ticker, newest first.
func (j *Journal) Runs(ctx context.Context, ticker string, limit int) ([]model.AnalysisRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, ticker, start_date, end_date, forecaster, observations, forecast_price,
			accuracy, next_date, next_signal, change_percent, COALESCE(trace_id, ''), created_at
		 FROM analysis_runs WHERE ticker = ? ORDER BY id DESC LIMIT ?`,
		strings.ToUpper(ticker), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.AnalysisRun{}
	for rows.Next() {
		var (
			r         model.AnalysisRun
			accuracy  sql.NullFloat64
			signal    string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.StartDate, &r.EndDate, &r.Forecaster,
			&r.Observations, &r.ForecastPrice, &accuracy, &r.NextDate, &signal,
			&r.ChangePercent, &r.TraceID, &createdAt); err != nil {
			j.log.Warn().Err(err).Msg("skipping unreadable run row")
			continue
		}
		if accuracy.Valid {
			v := accuracy.Float64
			r.Accuracy = &v
		}
		r.NextSignal = model.Signal(signal)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
