package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockpulse/internal/api"
	"stockpulse/internal/gateway"
	"stockpulse/internal/metrics"
	"stockpulse/internal/refresher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket gateway and periodic refresh",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := newCore(cfg, log)
	if err != nil {
		return err
	}
	defer c.close()

	health := c.startHealth(ctx)

	var relay gateway.Relay
	if cfg.Broadcast.Relay == "redis" {
		if c.rdb == nil {
			return errors.New("broadcast.relay=redis requires store.backend=redis")
		}
		relay = gateway.NewRedisRelay(c.rdb, cfg.Broadcast.RelayChannel, log)
	}
	hub := gateway.NewHub(gateway.HubOptions{
		Source:         c.service,
		Relay:          relay,
		TopMoversLimit: cfg.Broadcast.TopMoversLimit,
		Metrics:        c.metrics,
		Health:         health,
	}, log)
	c.service.SetPublisher(hub)

	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("relay stopped")
		}
	}()

	ref := refresher.New(refresher.Options{
		Tickers:  cfg.Broadcast.WatchTickers,
		Interval: cfg.Broadcast.RefreshInterval,
		Schedule: cfg.RefreshSpec(),
		Provider: c.provider,
		Store:    c.store,
		Out:      hub,
		Alerter:  c.alerter,
		Metrics:  c.metrics,
		Health:   health,
	}, log)
	if err := ref.Start(ctx); err != nil {
		return err
	}

	router := api.NewRouter(api.Options{
		Service: c.service,
		WS:      hub.ServeWS,
		Health:  health,
		Debug:   cfg.Log.Level == "debug",
	}, log)
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddr, health, c.registry, log)
	metricsSrv.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Store.Backend).
			Str("forecaster", cfg.Analysis.Forecaster).Msg("stockpulse serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err = <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	ref.Stop()
	hub.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("http shutdown")
	}
	if serr := metricsSrv.Stop(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("metrics shutdown")
	}
	cancel()
	log.Info().Msg("stopped")
	return err
}
