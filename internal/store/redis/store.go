package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
)

const (
	keyPrefix = "stock:"
	// recentKey is a ZSET of tickers scored by UpdatedAt (unix ms).
	recentKey = "stocks:updated"

	maxTxRetries = 64
)

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store persists StockState as JSON under stock:{TICKER}. Read-modify-write
// runs in a WATCH transaction on the ticker key and is retried on conflict.
type Store struct {
	client *goredis.Client
	m      *metrics.Metrics
	log    zerolog.Logger
}

// New creates a Store and pings the server.
func New(cfg Config, m *metrics.Metrics, log zerolog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := NewWithClient(client, m, log)
	s.log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, m *metrics.Metrics, log zerolog.Logger) *Store {
	return &Store{
		client: client,
		m:      m,
		log:    log.With().Str("component", "redis-store").Logger(),
	}
}

// Client returns the underlying Redis client for health checks and the relay.
func (s *Store) Client() *goredis.Client { return s.client }

func stockKey(ticker string) string { return keyPrefix + ticker }

// Get returns the stored state for ticker.
func (s *Store) Get(ctx context.Context, ticker string) (*model.StockState, error) {
	ticker = strings.ToUpper(ticker)
	raw, err := s.client.Get(ctx, stockKey(ticker)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("stock %s: %w", ticker, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", ticker, err)
	}
	var st model.StockState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ticker, err)
	}
	return &st, nil
}

// Update applies fn under WATCH on the ticker key. Conflicting writers
// retry with a short linear pause until maxTxRetries is exhausted.
func (s *Store) Update(ctx context.Context, ticker string, fn model.UpdateFunc) (*model.StockState, error) {
	ticker = strings.ToUpper(ticker)
	key := stockKey(ticker)

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var out *model.StockState
		err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
			next := &model.StockState{Ticker: ticker}
			raw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, goredis.Nil):
			case err != nil:
				return fmt.Errorf("redis get %s: %w", ticker, err)
			default:
				if err := json.Unmarshal(raw, next); err != nil {
					return fmt.Errorf("decode %s: %w", ticker, err)
				}
			}

			if err := fn(next); err != nil {
				return err
			}
			next.Ticker = ticker

			data, err := json.Marshal(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.ZAdd(ctx, recentKey, &goredis.Z{
					Score:  float64(next.UpdatedAt.UnixMilli()),
					Member: ticker,
				})
				return nil
			})
			out = next
			return err
		}, key)

		if err == nil {
			return out, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return nil, err
		}

		s.m.IncStoreConflict()
		s.log.Debug().Str("ticker", ticker).Int("attempt", attempt+1).Msg("watch conflict, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("update %s: gave up after %d conflicting attempts", ticker, maxTxRetries)
}

// Recent returns all states ordered by the recency index, newest first.
func (s *Store) Recent(ctx context.Context) ([]model.StockState, error) {
	tickers, err := s.client.ZRevRange(ctx, recentKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(tickers) == 0 {
		return nil, nil
	}

	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = stockKey(t)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]model.StockState, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var st model.StockState
		if err := json.Unmarshal([]byte(str), &st); err != nil {
			s.log.Warn().Err(err).Str("ticker", tickers[i]).Msg("skipping undecodable state")
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
