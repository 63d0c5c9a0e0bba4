package signal

import "stockpulse/internal/model"

const (
	// FastPathMovePct is the percent move from the previous close that the
	// quote heuristic treats as significant.
	FastPathMovePct = 2.0

	// FastPathMinVolume is the volume a rising quote needs to count as BUY.
	FastPathMinVolume = 1_000_000
)

// FromQuote is the cheap heuristic used by the periodic refresh: a move of
// more than 2% on heavy volume is BUY, a drop of more than 2% is SELL.
// It does not consult any indicator.
func FromQuote(price, prevClose, volume float64) model.Signal {
	if prevClose == 0 {
		return model.SignalNeutral
	}
	pct := (price - prevClose) / prevClose * 100
	switch {
	case pct > FastPathMovePct && volume > FastPathMinVolume:
		return model.SignalBuy
	case pct < -FastPathMovePct:
		return model.SignalSell
	default:
		return model.SignalNeutral
	}
}
