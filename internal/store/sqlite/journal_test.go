package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	acc := 97.25

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, price := range []float64{101, 102, 103} {
		run := model.AnalysisRun{
			Ticker:        "aapl",
			StartDate:     "2024-01-01",
			EndDate:       "2024-03-01",
			Forecaster:    "weighted",
			Observations:  42,
			ForecastPrice: price,
			NextDate:      "2024-03-04",
			NextSignal:    model.SignalBuy,
			ChangePercent: 1.5,
			TraceID:       "AAPL-1",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			run.Accuracy = &acc
		}
		require.NoError(t, j.Record(ctx, run))
	}
	require.NoError(t, j.Record(ctx, model.AnalysisRun{Ticker: "MSFT", NextSignal: model.SignalSell}))

	runs, err := j.Runs(ctx, "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, 103.0, runs[0].ForecastPrice)
	require.NotNil(t, runs[0].Accuracy)
	assert.Equal(t, acc, *runs[0].Accuracy)
	assert.Equal(t, model.SignalBuy, runs[0].NextSignal)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "AAPL", runs[0].Ticker)

	assert.Equal(t, 102.0, runs[1].ForecastPrice)
	assert.Nil(t, runs[1].Accuracy)
}

func TestRuns_UnknownTickerIsEmpty(t *testing.T) {
	j := openTestJournal(t)
	runs, err := j.Runs(context.Background(), "NONE", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
