// Package predictor forecasts the next close with a fixed weighted average
// and scores past forecasts against realized prices.
package predictor

import (
	"fmt"
	"math"

	"stockpulse/internal/model"
)

// Weights apply to the last len(Weights) closes, oldest first. They sum to 1.
var Weights = [...]float64{0.10, 0.15, 0.20, 0.25, 0.30}

// Window is the number of closes a forecast consumes.
const Window = len(Weights)

// Forecast returns the weighted sum of the last Window prices.
func Forecast(prices []float64) (float64, error) {
	if len(prices) < Window {
		return 0, fmt.Errorf("forecast needs %d prices, got %d: %w",
			Window, len(prices), model.ErrInsufficientHistory)
	}
	tail := prices[len(prices)-Window:]
	var sum float64
	for i, w := range Weights {
		sum += tail[i] * w
	}
	return sum, nil
}

// Backtest returns a one-step-ahead forecast per index: out[i] is the
// forecast made from prices[i-Window:i]. The first Window entries are NaN.
func Backtest(prices []float64) model.Series {
	out := make(model.Series, len(prices))
	for i := range out {
		if i < Window {
			out[i] = math.NaN()
			continue
		}
		out[i], _ = Forecast(prices[i-Window : i])
	}
	return out
}

// Accuracy is 100 minus the mean absolute percentage error over the indices
// where both actual and predicted are present and non-zero, clamped to
// [0,100]. NaN marks an absent value.
func Accuracy(actual, predicted []float64) (float64, error) {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		a, p := actual[i], predicted[i]
		if math.IsNaN(a) || math.IsNaN(p) || a == 0 || p == 0 {
			continue
		}
		sum += math.Abs(a-p) / math.Abs(a) * 100
		count++
	}
	if count == 0 {
		return 0, model.ErrNoOverlappingData
	}
	acc := 100 - sum/float64(count)
	return math.Max(0, math.Min(100, acc)), nil
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
