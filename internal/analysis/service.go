package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"stockpulse/internal/logger"
	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
	"stockpulse/internal/notification"
)

// DefaultLookback applies when a request leaves lookback_period at 0.
const DefaultLookback = 30

// Publisher fans an updated ticker out to live subscribers.
type Publisher interface {
	PublishStockUpdate(m model.TopMover)
}

// Options configures a Service. Store and Forecaster are required.
type Options struct {
	Forecaster      Forecaster
	Store           model.StockStore
	Journal         model.RunJournal // optional
	Alerter         *notification.TopMoverAlerter
	Publisher       Publisher // optional
	Metrics         *metrics.Metrics
	DefaultLookback int
	PersistTimeout  time.Duration
}

// Service is the analysis orchestrator. It runs the configured forecaster,
// then persists the outcome in the background so callers never wait on
// the store.
type Service struct {
	forecaster      Forecaster
	store           model.StockStore
	journal         model.RunJournal
	alerter         *notification.TopMoverAlerter
	publisher       Publisher
	metrics         *metrics.Metrics
	validate        *validator.Validate
	log             zerolog.Logger
	defaultLookback int
	persistTimeout  time.Duration
	now             func() time.Time

	wg sync.WaitGroup
}

// NewService wires the orchestrator.
func NewService(opts Options, log zerolog.Logger) *Service {
	if opts.DefaultLookback <= 0 {
		opts.DefaultLookback = DefaultLookback
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &Service{
		forecaster:      opts.Forecaster,
		store:           opts.Store,
		journal:         opts.Journal,
		alerter:         opts.Alerter,
		publisher:       opts.Publisher,
		metrics:         opts.Metrics,
		validate:        validator.New(),
		log:             log.With().Str("component", "analysis").Logger(),
		defaultLookback: opts.DefaultLookback,
		persistTimeout:  opts.PersistTimeout,
		now:             time.Now,
	}
}

// SetPublisher attaches the fan-out target after construction, for wiring
// where the hub itself depends on the service.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// ParseRequest validates an inbound request and normalizes it.
func (s *Service) ParseRequest(in model.AnalysisRequest) (Request, error) {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if err := s.validate.Struct(in); err != nil {
		return Request{}, fmt.Errorf("%v: %w", err, model.ErrInvalidRequest)
	}
	start, err := time.Parse(model.DateLayout, in.StartDate)
	if err != nil {
		return Request{}, fmt.Errorf("start_date: %v: %w", err, model.ErrInvalidRequest)
	}
	end, err := time.Parse(model.DateLayout, in.EndDate)
	if err != nil {
		return Request{}, fmt.Errorf("end_date: %v: %w", err, model.ErrInvalidRequest)
	}
	if end.Before(start) {
		return Request{}, fmt.Errorf("end_date %s before start_date %s: %w", in.EndDate, in.StartDate, model.ErrInvalidRequest)
	}
	lookback := in.LookbackPeriod
	if lookback == 0 {
		lookback = s.defaultLookback
	}
	return Request{Ticker: in.Ticker, Start: start, End: end, Lookback: lookback}, nil
}

// Analyze runs one analysis and schedules its persistence. Persistence
// failures never reach the caller.
func (s *Service) Analyze(ctx context.Context, in model.AnalysisRequest) (*model.AnalysisResult, error) {
	req, err := s.ParseRequest(in)
	if err != nil {
		return nil, err
	}
	if logger.TraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(req.Ticker, s.now()))
	}
	log := logger.FromContext(ctx, s.log).With().Str("ticker", req.Ticker).Logger()

	start := time.Now()
	res, err := s.forecaster.Forecast(ctx, req)
	s.metrics.ObserveAnalysis(s.forecaster.Name(), time.Since(start), err)
	if err != nil {
		log.Warn().Err(err).Str("forecaster", s.forecaster.Name()).Msg("analysis failed")
		return nil, err
	}
	res.Ticker = req.Ticker

	log.Info().
		Int("observations", len(res.Dates)).
		Float64("forecast", res.Prediction.ForecastPrice).
		Str("next_signal", string(res.NextDay.Signal)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persist(logger.TraceID(ctx), req, res)
	}()
	return res, nil
}

// Wait blocks until every scheduled persistence has finished.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) persist(traceID string, req Request, res *model.AnalysisResult) {
	ctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), traceID), s.persistTimeout)
	defer cancel()
	log := logger.FromContext(ctx, s.log).With().Str("ticker", req.Ticker).Logger()

	var becameMover bool
	st, err := s.store.Update(ctx, req.Ticker, func(st *model.StockState) error {
		becameMover = st.ApplyForecast(res, s.now().UTC())
		return nil
	})
	if err != nil {
		s.metrics.IncPersistFailure()
		log.Error().Err(err).Msg("persist stock state failed")
	} else {
		if becameMover {
			s.alerter.Notify(ctx, st, "analysis")
		}
		if s.publisher != nil {
			s.publisher.PublishStockUpdate(st.TopMover())
		}
	}

	if s.journal == nil {
		return
	}
	run := model.AnalysisRun{
		Ticker:        req.Ticker,
		StartDate:     req.StartDate(),
		EndDate:       req.EndDate(),
		Forecaster:    res.Forecaster,
		Observations:  len(res.Dates),
		ForecastPrice: res.Prediction.ForecastPrice,
		Accuracy:      res.Prediction.AccuracyPercent,
		NextDate:      res.NextDay.Date,
		NextSignal:    res.NextDay.Signal,
		ChangePercent: res.NextDay.ChangePercent,
		TraceID:       traceID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.journal.Record(ctx, run); err != nil {
		s.metrics.IncJournalFailure()
		log.Error().Err(err).Msg("journal analysis run failed")
	}
}

// Stock returns the persisted state for one ticker.
func (s *Service) Stock(ctx context.Context, ticker string) (*model.StockState, error) {
	return s.store.Get(ctx, strings.ToUpper(strings.TrimSpace(ticker)))
}

// Runs lists journaled runs for ticker, newest first.
func (s *Service) Runs(ctx context.Context, ticker string, limit int) ([]model.AnalysisRun, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("analysis journal disabled: %w", model.ErrNotFound)
	}
	return s.journal.Runs(ctx, strings.ToUpper(strings.TrimSpace(ticker)), limit)
}

// TopMovers returns the current snapshot. limit <= 0 means 4.
func (s *Service) TopMovers(ctx context.Context, limit int) ([]model.TopMover, error) {
	states, err := s.store.Recent(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return []model.TopMover{}, nil
		}
		return nil, err
	}
	return SelectTopMovers(states, s.now(), limit), nil
}
