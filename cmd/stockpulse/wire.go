package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"stockpulse/config"
	"stockpulse/internal/analysis"
	"stockpulse/internal/indicator"
	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
	"stockpulse/internal/notification"
	"stockpulse/internal/provider"
	"stockpulse/internal/store/memory"
	"stockpulse/internal/store/redis"
	"stockpulse/internal/store/sqlite"
)

// core holds the components shared by every subcommand.
type core struct {
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	provider *provider.Yahoo
	store    model.StockStore
	rdb      *goredis.Client // nil with the memory backend
	journal  *sqlite.Journal // nil when disabled
	alerter  *notification.TopMoverAlerter
	service  *analysis.Service
}

func newCore(cfg *config.Config, log zerolog.Logger) (*core, error) {
	c := &core{registry: prometheus.NewRegistry()}
	c.metrics = metrics.NewMetrics(c.registry)

	c.provider = provider.NewYahoo(provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		ClientOptions: provider.ClientOptions{
			Timeout:        cfg.Provider.Timeout,
			RequestsPerSec: cfg.Provider.RPS,
		},
	}, c.metrics, log)

	switch cfg.Store.Backend {
	case "redis":
		st, err := redis.New(redis.Config{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}, c.metrics, log)
		if err != nil {
			return nil, err
		}
		c.store, c.rdb = st, st.Client()
	default:
		c.store = memory.New()
	}

	if cfg.JournalEnabled() {
		j, err := sqlite.Open(cfg.Store.SQLitePath, log)
		if err != nil {
			c.close()
			return nil, err
		}
		c.journal = j
	}

	c.alerter = notification.NewTopMoverAlerter(newNotifier(cfg, log), c.metrics, log)

	fc, err := newForecaster(cfg, c.provider, log)
	if err != nil {
		c.close()
		return nil, err
	}
	opts := analysis.Options{
		Forecaster:      fc,
		Store:           c.store,
		Alerter:         c.alerter,
		Metrics:         c.metrics,
		DefaultLookback: cfg.Analysis.DefaultLookback,
		PersistTimeout:  cfg.Analysis.PersistTimeout,
	}
	if c.journal != nil {
		opts.Journal = c.journal
	}
	c.service = analysis.NewService(opts, log)
	return c, nil
}

func newForecaster(cfg *config.Config, p model.QuoteProvider, log zerolog.Logger) (analysis.Forecaster, error) {
	switch cfg.Analysis.Forecaster {
	case "process":
		return analysis.NewProcessForecaster(cfg.Analysis.ForecastCommand, cfg.Analysis.ForecastTimeout, log)
	case "weighted":
		return analysis.NewLocalForecaster(p, indicator.Config{
			FastPeriod: cfg.Analysis.EMAFast,
			SlowPeriod: cfg.Analysis.EMASlow,
			RSIPeriod:  cfg.Analysis.RSIPeriod,
		}), nil
	default:
		return nil, fmt.Errorf("unknown forecaster %q", cfg.Analysis.Forecaster)
	}
}

// close waits for pending persistence, then releases stores.
func (c *core) close() error {
	if c.service != nil {
		c.service.Wait()
	}
	var errs []error
	if c.journal != nil {
		errs = append(errs, c.journal.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	return errors.Join(errs...)
}

// startHealth creates the health status and probes Redis and SQLite every
// 15s until ctx is cancelled.
func (c *core) startHealth(ctx context.Context) *metrics.HealthStatus {
	h := metrics.NewHealthStatus(c.rdb != nil, c.journal != nil)
	var db *sql.DB
	if c.journal != nil {
		db = c.journal.DB()
	}
	h.StartLivenessChecker(ctx, c.rdb, db, 15*time.Second)
	return h
}

// newNotifier picks the alert channel: Telegram, then webhook, then the log.
func newNotifier(cfg *config.Config, log zerolog.Logger) notification.Notifier {
	switch {
	case cfg.TelegramEnabled():
		return notification.NewTelegramNotifier(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID, log)
	case cfg.Alerts.WebhookURL != "":
		return notification.NewWebhookNotifier(cfg.Alerts.WebhookURL, log)
	default:
		return notification.NewLogNotifier(log)
	}
}
