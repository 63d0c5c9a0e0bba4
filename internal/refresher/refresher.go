// Package refresher runs the periodic quote refresh for the watch list and
// broadcasts the updated tickers to every subscriber.
package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
	"stockpulse/internal/notification"
	"stockpulse/internal/signal"
)

// maxConcurrentQuotes bounds in-flight provider calls per tick.
const maxConcurrentQuotes = 4

// Broadcaster receives the per-tick snapshot.
type Broadcaster interface {
	BroadcastTopMovers(movers []model.TopMover)
}

// Options configures a Refresher.
type Options struct {
	Tickers  []string
	Interval time.Duration
	Schedule string // cron spec; defaults to "@every <Interval>"
	Provider model.QuoteProvider
	Store    model.StockStore
	Out      Broadcaster
	Alerter  *notification.TopMoverAlerter
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
}

// Refresher fetches a quote per watched ticker on a fixed schedule. Ticks
// may overlap; each store update is atomic per ticker.
type Refresher struct {
	opts Options
	cron *cron.Cron
	log  zerolog.Logger
	now  func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Refresher. Call Start to schedule it.
func New(opts Options, log zerolog.Logger) *Refresher {
	return &Refresher{
		opts: opts,
		cron: cron.New(),
		log:  log.With().Str("component", "refresher").Logger(),
		now:  time.Now,
	}
}

// Start schedules the refresh every Interval. Ticks stop when ctx is
// cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	if r.opts.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", r.opts.Interval)
	}
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	spec := r.opts.Schedule
	if spec == "" {
		spec = "@every " + r.opts.Interval.String()
	}
	if _, err := r.cron.AddFunc(spec, r.runTick); err != nil {
		return fmt.Errorf("register refresh %q: %w", spec, err)
	}
	r.cron.Start()
	r.log.Info().Strs("tickers", r.opts.Tickers).Dur("interval", r.opts.Interval).Msg("refresher started")
	return nil
}

// Stop cancels in-flight ticks and waits for them to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
	r.log.Info().Msg("refresher stopped")
}

func (r *Refresher) runTick() {
	r.mu.Lock()
	parent := r.ctx
	r.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, r.opts.Interval)
	defer cancel()
	r.Tick(ctx)
}

// Tick refreshes every watched ticker once. Tickers without data are
// skipped; the rest are persisted and, if any, broadcast together. It
// returns the broadcast snapshot.
func (r *Refresher) Tick(ctx context.Context) []model.TopMover {
	start := time.Now()
	tickers := r.opts.Tickers
	results := make([]*model.TopMover, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			results[i] = r.refreshOne(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	updated := make([]model.TopMover, 0, len(tickers))
	for _, m := range results {
		if m != nil {
			updated = append(updated, *m)
		}
	}
	r.opts.Metrics.ObserveRefresh(time.Since(start), len(updated))

	if len(updated) == 0 {
		r.log.Warn().Int("tickers", len(tickers)).Msg("refresh produced no data")
		return nil
	}
	if r.opts.Health != nil {
		r.opts.Health.SetLastRefresh(r.now())
	}
	if r.opts.Out != nil {
		r.opts.Out.BroadcastTopMovers(updated)
	}
	r.log.Info().Int("updated", len(updated)).Int("tickers", len(tickers)).
		Dur("elapsed", time.Since(start)).Msg("refresh broadcast")
	return updated
}

func (r *Refresher) refreshOne(ctx context.Context, ticker string) *model.TopMover {
	log := r.log.With().Str("ticker", ticker).Logger()

	q, err := r.opts.Provider.Quote(ctx, ticker)
	if err != nil {
		r.opts.Metrics.IncRefreshSkipped("quote")
		log.Warn().Err(err).Msg("quote unavailable, skipping")
		return nil
	}
	if q.Ticker == "" {
		q.Ticker = ticker
	}
	if q.ChangePercent == 0 && q.PreviousClose != 0 {
		q.ChangePercent = (q.Price - q.PreviousClose) / q.PreviousClose * 100
	}
	sig := signal.FromQuote(q.Price, q.PreviousClose, q.Volume)

	var becameMover bool
	st, err := r.opts.Store.Update(ctx, ticker, func(st *model.StockState) error {
		becameMover = st.ApplyQuote(q, sig, r.now().UTC())
		return nil
	})
	if err != nil {
		r.opts.Metrics.IncRefreshSkipped("store")
		r.opts.Metrics.IncPersistFailure()
		log.Error().Err(err).Msg("persist quote failed, skipping")
		return nil
	}
	if becameMover {
		r.opts.Alerter.Notify(ctx, st, "refresh")
	}
	m := st.TopMover()
	return &m
}
