package indicator

import (
	"fmt"

	"stockpulse/internal/model"
)

// EMA calculates Exponential Moving Average seeded with the first price.
// O(1) per update, no window storage.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA_%d", e.period) }

func (e *EMA) Update(price float64) {
	e.count++
	if e.count == 1 {
		e.current = price
		return
	}
	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Peek computes what Value() would be with an additional price without mutating state.
func (e *EMA) Peek(price float64) float64 {
	if e.count == 0 {
		return price
	}
	return (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

// EMASeries returns the EMA of prices, one value per input.
// Any non-empty series is accepted, including ones shorter than period.
func EMASeries(prices []float64, period int) (model.Series, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("ema(%d): empty series: %w", period, model.ErrInsufficientHistory)
	}
	if period < 1 {
		return nil, fmt.Errorf("ema: period must be >= 1, got %d", period)
	}
	e := NewEMA(period)
	out := make(model.Series, len(prices))
	for i, p := range prices {
		e.Update(p)
		out[i] = e.Value()
	}
	return out, nil
}
