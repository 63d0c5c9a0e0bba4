// Package signal turns indicator series into discrete BUY/SELL/NEUTRAL
// signals.
//
// Rule per index i >= 1, evaluated in order:
//
//	BUY     rsi < 40, or price crosses above the fast EMA
//	SELL    rsi > 60, or price crosses below the fast EMA
//	NEUTRAL otherwise
//
// BUY is evaluated first and wins any tie. Index 0 is always NEUTRAL.
package signal

import (
	"fmt"
	"math"

	"stockpulse/internal/model"
	"stockpulse/internal/predictor"
)

const (
	OversoldRSI   = 40.0
	OverboughtRSI = 60.0
)

// Classify applies the rule to one observation given the previous one.
func Classify(price, prevPrice, ema, prevEMA, rsi float64) model.Signal {
	// Upward crossover: price moves from at/below the EMA to above it
	if rsi < OversoldRSI || (price > ema && prevPrice <= prevEMA) {
		return model.SignalBuy
	}
	// Downward crossover
	if rsi > OverboughtRSI || (price < ema && prevPrice >= prevEMA) {
		return model.SignalSell
	}
	return model.SignalNeutral
}

// Generate classifies every index of prices. All three inputs must have the
// same length.
func Generate(prices, emaFast, rsi []float64) ([]model.Signal, error) {
	if len(emaFast) != len(prices) || len(rsi) != len(prices) {
		return nil, fmt.Errorf("signal: misaligned series (prices=%d ema=%d rsi=%d)",
			len(prices), len(emaFast), len(rsi))
	}
	out := make([]model.Signal, len(prices))
	if len(prices) == 0 {
		return out, nil
	}
	out[0] = model.SignalNeutral
	for i := 1; i < len(prices); i++ {
		out[i] = Classify(prices[i], prices[i-1], emaFast[i], emaFast[i-1], rsi[i])
	}
	return out, nil
}

// Summarize counts non-neutral signals and finds the RSI range.
func Summarize(signals []model.Signal, rsi []float64) model.SignalStats {
	var st model.SignalStats
	for _, s := range signals {
		switch s {
		case model.SignalBuy:
			st.BuySignals++
		case model.SignalSell:
			st.SellSignals++
		}
	}
	st.TotalSignals = st.BuySignals + st.SellSignals

	first := true
	for _, v := range rsi {
		if math.IsNaN(v) {
			continue
		}
		if first {
			st.MinRSI, st.MaxRSI = v, v
			first = false
			continue
		}
		st.MinRSI = math.Min(st.MinRSI, v)
		st.MaxRSI = math.Max(st.MaxRSI, v)
	}
	return st
}

// Recent lists the non-neutral signals within the last window observations.
// Prices are rounded to cents.
func Recent(dates []string, prices []float64, signals []model.Signal, window int) []model.RecentSignal {
	start := len(signals) - window
	if start < 0 {
		start = 0
	}
	out := []model.RecentSignal{}
	for i := start; i < len(signals); i++ {
		if signals[i] == model.SignalNeutral || i >= len(dates) || i >= len(prices) {
			continue
		}
		out = append(out, model.RecentSignal{Date: dates[i], Type: signals[i], Price: predictor.Round2(prices[i])})
	}
	return out
}
