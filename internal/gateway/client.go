package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"stockpulse/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 4096
)

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	sub  model.Subscriber
}

func newClient(h *Hub, conn *websocket.Conn, sub model.Subscriber) *Client {
	return &Client{hub: h, conn: conn, send: make(chan []byte, sendQueueSize), sub: sub}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per envelope; clients parse each frame as JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handle(msg)
	}
}

// handle routes one inbound frame. Malformed or unknown frames are dropped
// without a reply.
func (c *Client) handle(msg []byte) {
	h := c.hub
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.metrics.IncInboundDropped("malformed")
		return
	}

	switch env.Type {
	case TypeGetTopStocks:
		h.sendTopMovers(context.Background(), c)

	case TypeStockUpdate:
		var upd StockUpdateMsg
		if len(env.Data) == 0 || json.Unmarshal(env.Data, &upd) != nil {
			h.metrics.IncInboundDropped("malformed")
			return
		}
		if err := h.validate.Struct(upd); err != nil {
			h.metrics.IncInboundDropped("invalid")
			h.log.Debug().Err(err).Str("conn_id", c.sub.ConnectionID).Msg("stock_update dropped")
			return
		}
		h.publish(context.Background(), c.sub.ConnectionID, upd.TopMover())

	default:
		h.metrics.IncInboundDropped("unknown_type")
	}
}
