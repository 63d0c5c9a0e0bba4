package model

// Signal is the discrete trading recommendation for one observation.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)

// Valid reports whether s is one of the three known signals.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalNeutral:
		return true
	}
	return false
}

// OrNeutral returns s, or NEUTRAL when s is empty.
func (s Signal) OrNeutral() Signal {
	if s == "" {
		return SignalNeutral
	}
	return s
}
