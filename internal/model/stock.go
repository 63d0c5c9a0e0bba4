package model

import (
	"math"
	"time"
)

const (
	// MaxPredictionHistory bounds StockState.PredictionHistory.
	MaxPredictionHistory = 30

	// TopMoverThreshold is the absolute change percent that flags a top mover.
	TopMoverThreshold = 2.0
)

// PredictionRecord is one persisted forecast, optionally reconciled with
// the price that was later realized.
type PredictionRecord struct {
	Date           string   `json:"date"`
	PredictedPrice float64  `json:"predicted_price"`
	ActualPrice    *float64 `json:"actual_price,omitempty"`
	Signal         Signal   `json:"signal"`
	Accuracy       *float64 `json:"accuracy,omitempty"`
}

// StockState is the persisted per-ticker state.
type StockState struct {
	Ticker            string             `json:"ticker"`
	Company           string             `json:"company,omitempty"`
	LastPrice         float64            `json:"last_price"`
	ChangePercent     float64            `json:"change_percent"`
	Signal            Signal             `json:"signal"`
	Volume            float64            `json:"volume"`
	UpdatedAt         time.Time          `json:"updated_at"`
	IsTopMover        bool               `json:"is_top_mover"`
	PredictionHistory []PredictionRecord `json:"prediction_history"`
}

// AddPrediction appends rec and evicts the oldest entries beyond the cap.
func (s *StockState) AddPrediction(rec PredictionRecord) {
	s.PredictionHistory = append(s.PredictionHistory, rec)
	if n := len(s.PredictionHistory); n > MaxPredictionHistory {
		kept := make([]PredictionRecord, MaxPredictionHistory)
		copy(kept, s.PredictionHistory[n-MaxPredictionHistory:])
		s.PredictionHistory = kept
	}
}

// RecordActuals fills in the realized price and per-entry accuracy for every
// history entry whose date appears in actuals. It returns how many entries
// changed.
func (s *StockState) RecordActuals(actuals map[string]float64) int {
	n := 0
	for i := range s.PredictionHistory {
		rec := &s.PredictionHistory[i]
		actual, ok := actuals[rec.Date]
		if !ok || actual == 0 {
			continue
		}
		a := actual
		acc := 100 - math.Abs(rec.PredictedPrice-actual)/actual*100
		rec.ActualPrice = &a
		rec.Accuracy = &acc
		n++
	}
	return n
}

// markMover sets the top-mover flag when change crosses the threshold and
// reports whether the flag flipped from false to true. The flag is sticky.
func (s *StockState) markMover(change float64) bool {
	if math.Abs(change) <= TopMoverThreshold {
		return false
	}
	was := s.IsTopMover
	s.IsTopMover = true
	return !was
}

// ApplyForecast overwrites the headline fields from an analysis result and
// records the next-day forecast in the bounded history.
func (s *StockState) ApplyForecast(res *AnalysisResult, now time.Time) (becameMover bool) {
	s.Ticker = res.Ticker
	s.LastPrice = res.NextDay.Price
	s.ChangePercent = res.NextDay.ChangePercent
	s.Signal = res.NextDay.Signal
	s.Volume = res.LastVolume()
	s.UpdatedAt = now

	actuals := make(map[string]float64, len(res.Dates))
	for i, d := range res.Dates {
		if i < len(res.Prices) && !math.IsNaN(res.Prices[i]) {
			actuals[d] = res.Prices[i]
		}
	}
	s.RecordActuals(actuals)

	s.AddPrediction(PredictionRecord{
		Date:           res.NextDay.Date,
		PredictedPrice: res.NextDay.Price,
		Signal:         res.NextDay.Signal,
	})
	return s.markMover(res.NextDay.ChangePercent)
}

// ApplyQuote overwrites the headline fields from a live quote.
func (s *StockState) ApplyQuote(q Quote, sig Signal, now time.Time) (becameMover bool) {
	s.Ticker = q.Ticker
	if q.Company != "" {
		s.Company = q.Company
	}
	s.LastPrice = q.Price
	s.ChangePercent = q.ChangePercent
	s.Signal = sig
	s.Volume = q.Volume
	s.UpdatedAt = now
	return s.markMover(q.ChangePercent)
}

// TopMover converts the state into its snapshot record.
func (s *StockState) TopMover() TopMover {
	return TopMover{
		Ticker:        s.Ticker,
		Price:         s.LastPrice,
		Signal:        s.Signal.OrNeutral(),
		ChangePercent: s.ChangePercent,
	}
}

// TopMover is one entry of the top-movers snapshot and of a relayed
// stock_update.
type TopMover struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Signal        Signal  `json:"signal"`
	ChangePercent float64 `json:"change_percent"`
}

// Quote is a live quote from the provider.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Company       string    `json:"company,omitempty"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Volume        float64   `json:"volume"`
	ChangePercent float64   `json:"change_percent"`
	Time          time.Time `json:"time"`
}

// Subscriber is a live broadcast registration.
type Subscriber struct {
	ConnectionID string    `json:"connection_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	UserID       string    `json:"user_id,omitempty"`
}
