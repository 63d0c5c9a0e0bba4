// Package indicator computes the trend and momentum indicators used by the
// analysis pipeline.
//
// EMA and RSI are streaming structs fed one closing price at a time; the
// Series helpers and Compute drive them over a whole price sequence and
// return index-aligned output.
package indicator

import (
	"fmt"

	"stockpulse/internal/model"
)

// Indicator is the interface for streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_20", "RSI_14").
	Name() string

	// Update feeds the next closing price and recalculates.
	Update(price float64)

	// Value returns the current value. Returns 0 before the first update.
	Value() float64

	// Ready returns true once a full period of data has been seen.
	Ready() bool

	// Peek computes what Value() would be after one more price,
	// WITHOUT mutating internal state.
	Peek(price float64) float64
}

// Config selects the periods used by Compute.
type Config struct {
	FastPeriod int
	SlowPeriod int
	RSIPeriod  int
}

// DefaultConfig is EMA 20/50 with RSI 14.
func DefaultConfig() Config {
	return Config{FastPeriod: 20, SlowPeriod: 50, RSIPeriod: 14}
}

// Validate rejects non-positive periods.
func (c Config) Validate() error {
	if c.FastPeriod < 1 || c.SlowPeriod < 1 || c.RSIPeriod < 1 {
		return fmt.Errorf("indicator periods must be >= 1 (fast=%d slow=%d rsi=%d)",
			c.FastPeriod, c.SlowPeriod, c.RSIPeriod)
	}
	return nil
}

// Compute runs fast EMA, slow EMA and RSI over closes.
func Compute(closes []float64, cfg Config) (model.IndicatorSet, error) {
	if err := cfg.Validate(); err != nil {
		return model.IndicatorSet{}, err
	}
	fast, err := EMASeries(closes, cfg.FastPeriod)
	if err != nil {
		return model.IndicatorSet{}, err
	}
	slow, err := EMASeries(closes, cfg.SlowPeriod)
	if err != nil {
		return model.IndicatorSet{}, err
	}
	rsi, err := RSISeries(closes, cfg.RSIPeriod)
	if err != nil {
		return model.IndicatorSet{}, err
	}
	return model.IndicatorSet{EMAFast: fast, EMASlow: slow, RSI: rsi}, nil
}
