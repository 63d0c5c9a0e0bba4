package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockpulse/internal/indicator"
	"stockpulse/internal/model"
	"stockpulse/internal/predictor"
	"stockpulse/internal/signal"
)

// RecentSignalWindow is how many trailing observations feed RecentSignals.
const RecentSignalWindow = 20

// LocalForecaster runs the in-process pipeline: provider history, EMA/RSI,
// signals, and the weighted-average predictor.
type LocalForecaster struct {
	provider model.QuoteProvider
	cfg      indicator.Config
	now      func() time.Time
}

// NewLocalForecaster creates the in-process forecaster.
func NewLocalForecaster(p model.QuoteProvider, cfg indicator.Config) *LocalForecaster {
	return &LocalForecaster{provider: p, cfg: cfg, now: time.Now}
}

func (f *LocalForecaster) Name() string { return "weighted" }

func (f *LocalForecaster) Forecast(ctx context.Context, req Request) (*model.AnalysisResult, error) {
	series, err := f.provider.History(ctx, req.Ticker, req.Start, req.End)
	if err != nil {
		if !errors.Is(err, model.ErrDataUnavailable) {
			err = fmt.Errorf("%v: %w", err, model.ErrDataUnavailable)
		}
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if series.Len() < req.Lookback {
		return nil, fmt.Errorf("%s: %d observations, lookback needs %d: %w",
			req.Ticker, series.Len(), req.Lookback, model.ErrInsufficientHistory)
	}
	return Compute(series, f.cfg, f.now())
}

// Compute builds an AnalysisResult from a validated series.
func Compute(series model.PriceSeries, cfg indicator.Config, now time.Time) (*model.AnalysisResult, error) {
	closes := series.Closes()
	dates := series.Dates()

	ind, err := indicator.Compute(closes, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series.Ticker, err)
	}
	sigs, err := signal.Generate(closes, ind.EMAFast, ind.RSI)
	if err != nil {
		return nil, err
	}

	forecast, err := predictor.Forecast(closes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series.Ticker, err)
	}
	backtest := predictor.Backtest(closes)

	pred := model.Prediction{ForecastPrice: forecast}
	if acc, err := predictor.Accuracy(closes, backtest); err == nil {
		pred.AccuracyPercent = &acc
	} else if !errors.Is(err, model.ErrNoOverlappingData) {
		return nil, err
	}

	last := len(closes) - 1
	lastClose := closes[last]
	next := model.NextDaySignal{
		Date:   nextBusinessDay(series.Last().Date).Format(model.DateLayout),
		Price:  predictor.Round2(forecast),
		Signal: signal.Classify(forecast, lastClose, ind.EMAFast[last], ind.EMAFast[last], ind.RSI[last]),
	}
	if lastClose != 0 {
		next.ChangePercent = predictor.Round2((forecast - lastClose) / lastClose * 100)
	}

	return &model.AnalysisResult{
		Ticker:        series.Ticker,
		Dates:         dates,
		Prices:        model.Series(closes),
		Volume:        model.Series(series.Volumes()),
		IndicatorSet:  ind,
		Signals:       sigs,
		Predictions:   backtest,
		RecentSignals: signal.Recent(dates, closes, sigs, RecentSignalWindow),
		Stats:         signal.Summarize(sigs, ind.RSI),
		Prediction:    pred,
		NextDay:       next,
		Forecaster:    "weighted",
		GeneratedAt:   now.UTC(),
	}, nil
}
