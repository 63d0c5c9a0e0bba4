package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"stockpulse/internal/model"
)

// DeliverFunc hands a relayed update to the local fan-out. origin is the
// connection id that must not receive it, or "" for everyone.
type DeliverFunc func(origin string, m model.TopMover)

// Relay carries stock updates between hub instances.
type Relay interface {
	Publish(ctx context.Context, origin string, m model.TopMover) error
	// Run delivers relayed updates until ctx is cancelled.
	Run(ctx context.Context, deliver DeliverFunc) error
}

// LocalRelay delivers in-process only.
type LocalRelay struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

// NewLocalRelay creates a relay for single-instance deployments.
func NewLocalRelay() *LocalRelay { return &LocalRelay{} }

// Publish delivers synchronously once Run has started; before that updates
// are dropped.
func (r *LocalRelay) Publish(_ context.Context, origin string, m model.TopMover) error {
	r.mu.RLock()
	fn := r.deliver
	r.mu.RUnlock()
	if fn != nil {
		fn(origin, m)
	}
	return nil
}

func (r *LocalRelay) Run(ctx context.Context, deliver DeliverFunc) error {
	r.mu.Lock()
	r.deliver = deliver
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	r.deliver = nil
	r.mu.Unlock()
	return nil
}

// relayMessage is the payload on the Redis channel.
type relayMessage struct {
	Origin string         `json:"origin,omitempty"`
	Update model.TopMover `json:"update"`
}

// RedisRelay fans stock updates across instances over Redis PubSub.
// Connection ids are UUIDs, so origin exclusion is safe across instances.
type RedisRelay struct {
	rdb     *goredis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisRelay creates a relay on channel.
func NewRedisRelay(rdb *goredis.Client, channel string, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, log: log.With().Str("component", "relay").Logger()}
}

func (r *RedisRelay) Publish(ctx context.Context, origin string, m model.TopMover) error {
	payload, err := json.Marshal(relayMessage{Origin: origin, Update: m})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

// Run subscribes to the channel and blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, deliver DeliverFunc) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Msg("subscribed to relay channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				r.log.Warn().Err(err).Msg("bad relay payload")
				continue
			}
			deliver(rm.Origin, rm.Update)
		}
	}
}
