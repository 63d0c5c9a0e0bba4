package gateway

import (
	"stockpulse/internal/model"
)

// BroadcastTopMovers sends a top_stocks_update to every connected client.
func (h *Hub) BroadcastTopMovers(movers []model.TopMover) {
	if movers == nil {
		movers = []model.TopMover{}
	}
	buf, err := encode(TypeTopStocksUpdate, movers)
	if err != nil {
		h.log.Error().Err(err).Msg("encode top movers")
		return
	}
	n := h.fanOut(buf, "")
	h.metrics.IncBroadcast(TypeTopStocksUpdate)
	h.log.Debug().Int("stocks", len(movers)).Int("clients", n).Msg("broadcast top movers")
}

// deliverStockUpdate sends a stock_update to every client except origin.
// An empty origin reaches everyone.
func (h *Hub) deliverStockUpdate(origin string, m model.TopMover) {
	buf, err := encode(TypeStockUpdate, m)
	if err != nil {
		h.log.Error().Err(err).Msg("encode stock update")
		return
	}
	n := h.fanOut(buf, origin)
	h.metrics.IncBroadcast(TypeStockUpdate)
	h.log.Debug().Str("ticker", m.Ticker).Float64("price", m.Price).
		Str("signal", string(m.Signal)).Int("clients", n).Msg("relayed stock update")
}

// fanOut enqueues buf on every client queue except the one keyed by skip,
// under the read lock. A full queue drops the frame for that client.
func (h *Hub) fanOut(buf []byte, skip string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for id, c := range h.clients {
		if id == skip {
			continue
		}
		select {
		case c.send <- buf:
			sent++
		default:
			h.metrics.IncBroadcastDrop()
		}
	}
	return sent
}
