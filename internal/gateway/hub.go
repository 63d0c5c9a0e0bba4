// Package gateway is the websocket broadcast service: it owns the live
// subscriber registry, answers top-movers requests, and relays
// client-submitted stock updates to every other subscriber.
package gateway

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
)

const sendQueueSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TopMoversSource supplies the snapshot pushed on connect and on request.
type TopMoversSource interface {
	TopMovers(ctx context.Context, limit int) ([]model.TopMover, error)
}

// HubOptions configures a Hub. Source is required; a nil Relay means
// in-process relay only.
type HubOptions struct {
	Source         TopMoversSource
	Relay          Relay
	TopMoversLimit int
	Metrics        *metrics.Metrics
	Health         *metrics.HealthStatus
}

// Hub manages websocket clients. Registration and removal take the write
// lock; fan-out iterates under the read lock.
type Hub struct {
	source   TopMoversSource
	relay    Relay
	limit    int
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	validate *validator.Validate
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a Hub.
func NewHub(opts HubOptions, log zerolog.Logger) *Hub {
	if opts.TopMoversLimit <= 0 {
		opts.TopMoversLimit = 4
	}
	if opts.Relay == nil {
		opts.Relay = NewLocalRelay()
	}
	return &Hub{
		source:   opts.Source,
		relay:    opts.Relay,
		limit:    opts.TopMoversLimit,
		metrics:  opts.Metrics,
		health:   opts.Health,
		validate: validator.New(),
		log:      log.With().Str("component", "gateway").Logger(),
		clients:  make(map[string]*Client),
	}
}

// Run consumes the relay until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	h.log.Info().Msg("relay loop started")
	return h.relay.Run(ctx, h.deliverStockUpdate)
}

// ServeWS upgrades the request and registers the connection. The optional
// user_id query parameter is recorded on the subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := newClient(h, conn, model.Subscriber{
		ConnectionID: uuid.NewString(),
		ConnectedAt:  time.Now().UTC(),
		UserID:       r.URL.Query().Get("user_id"),
	})
	h.register(c)

	go c.writePump()
	go c.readPump()
	h.sendTopMovers(context.Background(), c)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.sub.ConnectionID] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.subscribersChanged(n)
	h.log.Info().Str("conn_id", c.sub.ConnectionID).Str("user_id", c.sub.UserID).
		Int("total", n).Msg("ws client connected")
}

// RemoveClient unregisters c and closes its queue. It is idempotent.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.sub.ConnectionID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.sub.ConnectionID)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.subscribersChanged(n)
	h.log.Info().Str("conn_id", c.sub.ConnectionID).Int("total", n).Msg("ws client disconnected")
}

func (h *Hub) subscribersChanged(n int) {
	h.metrics.SetSubscribers(n)
	if h.health != nil {
		h.health.SetSubscribers(n)
	}
}

// sendTopMovers pushes the current snapshot to c only.
func (h *Hub) sendTopMovers(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	movers, err := h.source.TopMovers(ctx, h.limit)
	if err != nil {
		h.log.Warn().Err(err).Str("conn_id", c.sub.ConnectionID).Msg("top movers snapshot failed")
		return
	}
	if movers == nil {
		movers = []model.TopMover{}
	}
	buf, err := encode(TypeTopStocksUpdate, movers)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.sub.ConnectionID]; !ok {
		return
	}
	select {
	case c.send <- buf:
	default:
		h.metrics.IncBroadcastDrop()
	}
}

// PublishStockUpdate relays an update to every subscriber on every instance.
func (h *Hub) PublishStockUpdate(m model.TopMover) {
	h.publish(context.Background(), "", m)
}

func (h *Hub) publish(ctx context.Context, origin string, m model.TopMover) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.relay.Publish(ctx, origin, m); err != nil {
		h.metrics.IncRelayPublishError()
		h.log.Warn().Err(err).Str("ticker", m.Ticker).Msg("relay publish failed")
	}
}

// Subscribers lists connected subscribers, oldest first.
func (h *Hub) Subscribers() []model.Subscriber {
	h.mu.RLock()
	out := make([]model.Subscriber, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.sub)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
