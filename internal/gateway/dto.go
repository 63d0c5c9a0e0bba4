package gateway

import (
	"encoding/json"

	"stockpulse/internal/model"
)

// Message kinds carried in Envelope.Type.
const (
	TypeGetTopStocks    = "get_top_stocks"
	TypeStockUpdate     = "stock_update"
	TypeTopStocksUpdate = "top_stocks_update"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StockUpdateMsg is a client-submitted price update. Price is a pointer so
// a missing price fails validation instead of relaying 0.
type StockUpdateMsg struct {
	Ticker        string       `json:"ticker" validate:"required"`
	Price         *float64     `json:"price" validate:"required"`
	Signal        model.Signal `json:"signal"`
	ChangePercent *float64     `json:"change_percent"`
}

// TopMover normalizes the message for relay: signal defaults to NEUTRAL
// and change_percent to 0.
func (m StockUpdateMsg) TopMover() model.TopMover {
	out := model.TopMover{
		Ticker: m.Ticker,
		Price:  *m.Price,
		Signal: m.Signal.OrNeutral(),
	}
	if m.ChangePercent != nil {
		out.ChangePercent = *m.ChangePercent
	}
	return out
}

func encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}
