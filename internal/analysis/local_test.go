package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/indicator"
	"stockpulse/internal/model"
	"stockpulse/internal/predictor"
)

func TestLocalForecaster_AlignedResult(t *testing.T) {
	series := weekdaySeries("AAPL", 80)
	f := NewLocalForecaster(&fakeProvider{series: series}, indicator.DefaultConfig())

	res, err := f.Forecast(context.Background(), Request{Ticker: "AAPL", Lookback: 30})
	require.NoError(t, err)

	n := series.Len()
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Len(t, res.Dates, n)
	assert.Len(t, res.Prices, n)
	assert.Len(t, res.Volume, n)
	assert.Len(t, res.EMAFast, n)
	assert.Len(t, res.EMASlow, n)
	assert.Len(t, res.RSI, n)
	assert.Len(t, res.Signals, n)
	assert.Len(t, res.Predictions, n)
	assert.Equal(t, model.SignalNeutral, res.Signals[0])
	assert.Equal(t, "weighted", res.Forecaster)

	closes := series.Closes()
	want, _ := predictor.Forecast(closes)
	assert.InDelta(t, want, res.Prediction.ForecastPrice, 1e-9)
	require.NotNil(t, res.Prediction.AccuracyPercent)
	assert.Greater(t, *res.Prediction.AccuracyPercent, 90.0)
	assert.LessOrEqual(t, *res.Prediction.AccuracyPercent, 100.0)

	last := closes[n-1]
	assert.Equal(t, predictor.Round2(want), res.NextDay.Price)
	assert.Equal(t, predictor.Round2((want-last)/last*100), res.NextDay.ChangePercent)
	assert.True(t, res.NextDay.Signal.Valid())
	assert.Equal(t, res.Stats.TotalSignals, res.Stats.BuySignals+res.Stats.SellSignals)
	assert.LessOrEqual(t, len(res.RecentSignals), RecentSignalWindow)
}

func TestLocalForecaster_NextDaySkipsWeekend(t *testing.T) {
	series := weekdaySeries("MSFT", 60)
	res, err := Compute(series, indicator.DefaultConfig(), time.Now())
	require.NoError(t, err)

	lastDate := series.Last().Date
	next, err := time.Parse(model.DateLayout, res.NextDay.Date)
	require.NoError(t, err)
	assert.True(t, next.After(lastDate))
	assert.NotEqual(t, time.Saturday, next.Weekday())
	assert.NotEqual(t, time.Sunday, next.Weekday())
}

func TestNextBusinessDay(t *testing.T) {
	fri := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), nextBusinessDay(fri))

	tue := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), nextBusinessDay(tue))
}

func TestLocalForecaster_ProviderErrorIsDataUnavailable(t *testing.T) {
	f := NewLocalForecaster(&fakeProvider{err: errors.New("connection refused")}, indicator.DefaultConfig())
	_, err := f.Forecast(context.Background(), Request{Ticker: "AAPL", Lookback: 30})
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestLocalForecaster_EmptySeriesIsDataUnavailable(t *testing.T) {
	f := NewLocalForecaster(&fakeProvider{}, indicator.DefaultConfig())
	_, err := f.Forecast(context.Background(), Request{Ticker: "AAPL", Lookback: 30})
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestLocalForecaster_ShorterThanLookback(t *testing.T) {
	f := NewLocalForecaster(&fakeProvider{series: weekdaySeries("AAPL", 25)}, indicator.DefaultConfig())
	_, err := f.Forecast(context.Background(), Request{Ticker: "AAPL", Lookback: 30})
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestLocalForecaster_ShorterThanRSIPeriod(t *testing.T) {
	f := NewLocalForecaster(&fakeProvider{series: weekdaySeries("AAPL", 10)}, indicator.DefaultConfig())
	_, err := f.Forecast(context.Background(), Request{Ticker: "AAPL", Lookback: 5})
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestCompute_NoOverlapLeavesAccuracyNil(t *testing.T) {
	// Exactly Window closes: the backtest has no forecasts, so there is
	// nothing to score, but the forecast itself still succeeds.
	series := weekdaySeries("AAPL", predictor.Window)
	cfg := indicator.Config{FastPeriod: 2, SlowPeriod: 3, RSIPeriod: 3}

	res, err := Compute(series, cfg, time.Now())
	require.NoError(t, err)
	assert.Nil(t, res.Prediction.AccuracyPercent)
	for i := 0; i < predictor.Window; i++ {
		assert.True(t, math.IsNaN(res.Predictions[i]))
	}
}

// seriesFrom lays closes on consecutive weekdays from 2024-01-02.
func seriesFrom(ticker string, closes []float64) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		s.Bars = append(s.Bars, model.Bar{Date: d, Close: c, Volume: 1_000_000})
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func trend(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// zigzag alternates 100 and 102, which keeps RSI near 50.
func zigzag(n int, tail ...float64) []float64 {
	out := make([]float64, 0, n+len(tail))
	for i := 0; i < n; i++ {
		out = append(out, 100+2*float64(i%2))
	}
	return append(out, tail...)
}

func TestCompute_NextDaySignal(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   model.Signal
	}{
		// rsi 0
		{"steady downtrend", trend(100, -1, 30), model.SignalBuy},
		// rsi 100
		{"steady uptrend", trend(100, 1, 30), model.SignalSell},
		// last 100.8 <= ema 101.24 < forecast 101.52, rsi ~48.8
		{"forecast crosses above ema", zigzag(40, 101.6, 102, 101.6, 102, 100.8), model.SignalBuy},
		// last 101.6 >= ema 100.83 > forecast 100.6, rsi ~51.5
		{"forecast crosses below ema", zigzag(40, 100.4, 100, 100.4, 100, 101.6), model.SignalSell},
		// last 102 and forecast 101.2 both above ema 101.03, rsi ~51.6
		{"no crossover mid rsi", zigzag(40), model.SignalNeutral},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(seriesFrom("AAPL", tc.closes), indicator.DefaultConfig(), time.Now())
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.NextDay.Signal)
		})
	}
}
