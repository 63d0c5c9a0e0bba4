package model

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPrediction_CapsAndEvictsOldest(t *testing.T) {
	var s StockState
	for i := 0; i < 75; i++ {
		s.AddPrediction(PredictionRecord{Date: fmt.Sprintf("d%02d", i), PredictedPrice: float64(i)})
		require.LessOrEqual(t, len(s.PredictionHistory), MaxPredictionHistory)
	}
	require.Len(t, s.PredictionHistory, MaxPredictionHistory)
	assert.Equal(t, "d45", s.PredictionHistory[0].Date)
	assert.Equal(t, "d74", s.PredictionHistory[MaxPredictionHistory-1].Date)
}

func TestRecordActuals(t *testing.T) {
	s := StockState{PredictionHistory: []PredictionRecord{
		{Date: "2024-03-01", PredictedPrice: 110},
		{Date: "2024-03-04", PredictedPrice: 50},
	}}
	n := s.RecordActuals(map[string]float64{"2024-03-01": 100})
	require.Equal(t, 1, n)

	rec := s.PredictionHistory[0]
	require.NotNil(t, rec.ActualPrice)
	assert.Equal(t, 100.0, *rec.ActualPrice)
	assert.InDelta(t, 90.0, *rec.Accuracy, 1e-9)
	assert.Nil(t, s.PredictionHistory[1].ActualPrice)
}

func TestApplyQuote_TopMoverIsSticky(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var s StockState

	became := s.ApplyQuote(Quote{Ticker: "AAPL", Price: 100, ChangePercent: 1.5}, SignalNeutral, now)
	assert.False(t, became)
	assert.False(t, s.IsTopMover)

	became = s.ApplyQuote(Quote{Ticker: "AAPL", Price: 103, ChangePercent: -2.5}, SignalSell, now)
	assert.True(t, became)
	assert.True(t, s.IsTopMover)

	became = s.ApplyQuote(Quote{Ticker: "AAPL", Price: 103, ChangePercent: 0.1}, SignalNeutral, now)
	assert.False(t, became)
	assert.True(t, s.IsTopMover)
}

func TestApplyForecast(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	s := StockState{PredictionHistory: []PredictionRecord{{Date: "2024-03-04", PredictedPrice: 99}}}
	res := &AnalysisResult{
		Ticker: "MSFT",
		Dates:  []string{"2024-03-01", "2024-03-04"},
		Prices: Series{98, 100},
		Volume: Series{10, 20},
		NextDay: NextDaySignal{
			Date: "2024-03-05", Price: 103, Signal: SignalBuy, ChangePercent: 3,
		},
	}

	became := s.ApplyForecast(res, now)
	assert.True(t, became)
	assert.Equal(t, 103.0, s.LastPrice)
	assert.Equal(t, 20.0, s.Volume)
	assert.Equal(t, SignalBuy, s.Signal)
	require.Len(t, s.PredictionHistory, 2)
	require.NotNil(t, s.PredictionHistory[0].ActualPrice)
	assert.Equal(t, 100.0, *s.PredictionHistory[0].ActualPrice)
	assert.Equal(t, "2024-03-05", s.PredictionHistory[1].Date)
}

func TestSeries_NullRoundTrip(t *testing.T) {
	b, err := json.Marshal(Series{1.5, math.NaN(), 2})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5,null,2]`, string(b))

	var back Series
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 3)
	assert.True(t, math.IsNaN(back[1]))
	assert.Equal(t, 2.0, back[2])
}
