package model

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Series is a float sequence where NaN marks an absent entry.
// Absent entries encode as JSON null and decode back to NaN.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*s = out
	return nil
}

// IndicatorSet holds the index-aligned indicator series for one analysis.
type IndicatorSet struct {
	EMAFast Series `json:"ema_fast"`
	EMASlow Series `json:"ema_slow"`
	RSI     Series `json:"rsi"`
}

// Prediction is the next-step forecast with its historical accuracy.
// AccuracyPercent is nil when no forecast/actual pairs overlapped.
type Prediction struct {
	ForecastPrice   float64  `json:"forecast_price"`
	AccuracyPercent *float64 `json:"accuracy_percent"`
}

// NextDaySignal summarizes the forecast for the next business day.
type NextDaySignal struct {
	Date          string  `json:"date"`
	Price         float64 `json:"price"`
	Signal        Signal  `json:"signal"`
	ChangePercent float64 `json:"change_percent"`
}

// SignalStats counts the signals over the analysed window.
type SignalStats struct {
	TotalSignals int     `json:"total_signals"`
	BuySignals   int     `json:"buy_signals"`
	SellSignals  int     `json:"sell_signals"`
	MinRSI       float64 `json:"min_rsi"`
	MaxRSI       float64 `json:"max_rsi"`
}

// RecentSignal is a non-neutral signal near the end of the window.
type RecentSignal struct {
	Date  string  `json:"date"`
	Type  Signal  `json:"type"`
	Price float64 `json:"price"`
}

// AnalysisRequest identifies one analysis run.
type AnalysisRequest struct {
	Ticker         string `json:"ticker" validate:"required,max=12"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02"`
	LookbackPeriod int    `json:"lookback_period" validate:"gte=0,lte=5000"`
}

// AnalysisResult is returned to callers and broadcast to subscribers.
type AnalysisResult struct {
	Ticker string   `json:"ticker"`
	Dates  []string `json:"dates"`
	Prices Series   `json:"prices"`
	Volume Series   `json:"volumes"`
	IndicatorSet
	Signals       []Signal       `json:"signals"`
	Predictions   Series         `json:"predictions"`
	RecentSignals []RecentSignal `json:"recent_signals"`
	Stats         SignalStats    `json:"signal_stats"`
	Prediction    Prediction     `json:"prediction"`
	NextDay       NextDaySignal  `json:"next_day_prediction"`
	Forecaster    string         `json:"forecaster"`
	GeneratedAt   time.Time      `json:"generated_at"`

	// Error is set only by external forecast processes reporting failure.
	Error string `json:"error,omitempty"`
}

// LastVolume returns the most recent volume, or 0 for an empty result.
func (r *AnalysisResult) LastVolume() float64 {
	if len(r.Volume) == 0 || math.IsNaN(r.Volume[len(r.Volume)-1]) {
		return 0
	}
	return r.Volume[len(r.Volume)-1]
}
