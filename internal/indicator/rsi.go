package indicator

import (
	"fmt"

	"stockpulse/internal/model"
)

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// The averages are seeded from the first `period` deltas; until the seed is
// complete Value() reports 0 and Ready() is false.
type RSI struct {
	period    int
	count     int // prices seen
	prevClose float64
	lastDelta float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI_%d", r.period) }

func (r *RSI) Update(price float64) {
	r.count++
	if r.count == 1 {
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price
	r.lastDelta = delta
	gain, loss := split(delta)

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss
		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiFrom(r.avgGain, r.avgLoss)
		}
		return
	}

	r.smooth(gain, loss)
}

// smooth applies one step of Wilder's recursive average.
func (r *RSI) smooth(gain, loss float64) {
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiFrom(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// Peek computes what RSI would be with an additional price without mutating state.
func (r *RSI) Peek(price float64) float64 {
	if !r.Ready() {
		return r.current
	}
	gain, loss := split(price - r.prevClose)
	p := float64(r.period)
	return rsiFrom((r.avgGain*(p-1)+gain)/p, (r.avgLoss*(p-1)+loss)/p)
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// rsiFrom maps average gain/loss onto [0,100]. A zero average loss is
// exactly 100.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns an RSI value for every price. It requires
// len(prices) > period.
//
// The first period entries repeat the seeded value. From index period
// onward each entry applies one smoothing step with the delta ending at that
// observation, so entry period re-applies the last seed delta. Stored signal
// history depends on this exact alignment.
func RSISeries(prices []float64, period int) (model.Series, error) {
	if period < 1 {
		return nil, fmt.Errorf("rsi: period must be >= 1, got %d", period)
	}
	if len(prices) <= period {
		return nil, fmt.Errorf("rsi(%d) needs more than %d prices, got %d: %w",
			period, period, len(prices), model.ErrInsufficientHistory)
	}

	r := NewRSI(period)
	for _, p := range prices[:period+1] {
		r.Update(p)
	}

	out := make(model.Series, len(prices))
	for i := 0; i < period; i++ {
		out[i] = r.Value()
	}
	for i := period; i < len(prices); i++ {
		r.smooth(split(prices[i] - prices[i-1]))
		out[i] = r.Value()
	}
	return out, nil
}
