package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used on every wire surface.
const DateLayout = "2006-01-02"

// Bar is one daily observation for a ticker.
type Bar struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered run of daily bars for one ticker.
// It is built once per analysis and never mutated afterwards.
type PriceSeries struct {
	Ticker string
	Bars   []Bar
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes returns the closing prices in date order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes in date order.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Dates returns the observation dates formatted as YYYY-MM-DD.
func (s PriceSeries) Dates() []string {
	out := make([]string, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date.Format(DateLayout)
	}
	return out
}

// Last returns the most recent bar. The series must be non-empty.
func (s PriceSeries) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Validate checks that the series is non-empty and strictly increasing by date.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%s: empty price series: %w", s.Ticker, ErrDataUnavailable)
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%s: bars out of order at index %d", s.Ticker, i)
		}
	}
	return nil
}
