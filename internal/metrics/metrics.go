package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the stockpulse service.
// All helper methods are safe on a nil *Metrics.
type Metrics struct {
	// Analysis
	AnalysesTotal   *prometheus.CounterVec // labels: forecaster, result
	AnalysisDur     *prometheus.HistogramVec
	PersistFailures prometheus.Counter
	JournalFailures prometheus.Counter
	TopMoverAlerts  prometheus.Counter

	// Refresh loop
	RefreshTicks      prometheus.Counter
	RefreshDur        prometheus.Histogram
	RefreshSkipped    *prometheus.CounterVec // labels: reason
	RefreshLastUpdate prometheus.Gauge

	// Broadcast
	Subscribers        prometheus.Gauge
	BroadcastsTotal    *prometheus.CounterVec // labels: type
	BroadcastDrops     prometheus.Counter
	InboundDropped     *prometheus.CounterVec // labels: reason
	RelayPublishErrors prometheus.Counter

	// Provider
	ProviderRequests     *prometheus.CounterVec // labels: op, status
	ProviderDur          prometheus.Histogram
	ProviderBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	ProviderBreakerTrips prometheus.Counter

	// Store
	StoreConflicts prometheus.Counter
}

// NewMetrics creates all collectors and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpulse_analyses_total",
			Help: "Analyses completed, by forecaster and result",
		}, []string{"forecaster", "result"}),
		AnalysisDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockpulse_analysis_duration_seconds",
			Help:    "Analysis latency including provider fetch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"forecaster"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_persist_failures_total",
			Help: "Background StockState persistence failures",
		}),
		JournalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_journal_failures_total",
			Help: "Analysis journal write failures",
		}),
		TopMoverAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_top_mover_alerts_total",
			Help: "Tickers newly flagged as top movers",
		}),

		RefreshTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_refresh_ticks_total",
			Help: "Periodic refresh ticks run",
		}),
		RefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockpulse_refresh_duration_seconds",
			Help:    "Periodic refresh tick latency",
			Buckets: prometheus.DefBuckets,
		}),
		RefreshSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpulse_refresh_skipped_total",
			Help: "Tickers skipped during a refresh tick, by reason",
		}, []string{"reason"}),
		RefreshLastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockpulse_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last tick that updated at least one ticker",
		}),

		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockpulse_subscribers",
			Help: "Connected websocket subscribers",
		}),
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpulse_broadcasts_total",
			Help: "Outbound fan-out events, by message type",
		}, []string{"type"}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_broadcast_drops_total",
			Help: "Messages dropped because a subscriber queue was full",
		}),
		InboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpulse_inbound_dropped_total",
			Help: "Inbound subscriber messages dropped, by reason",
		}, []string{"reason"}),
		RelayPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_relay_publish_errors_total",
			Help: "stock_update relay publish failures",
		}),

		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpulse_provider_requests_total",
			Help: "Quote/history provider requests, by operation and status",
		}, []string{"op", "status"}),
		ProviderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockpulse_provider_request_duration_seconds",
			Help:    "Provider request latency including retries",
			Buckets: prometheus.DefBuckets,
		}),
		ProviderBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockpulse_provider_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		ProviderBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_provider_circuit_breaker_trips_total",
			Help: "Times the provider circuit breaker tripped open",
		}),

		StoreConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpulse_store_conflicts_total",
			Help: "Optimistic transaction retries in the StockState store",
		}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDur,
		m.PersistFailures,
		m.JournalFailures,
		m.TopMoverAlerts,
		m.RefreshTicks,
		m.RefreshDur,
		m.RefreshSkipped,
		m.RefreshLastUpdate,
		m.Subscribers,
		m.BroadcastsTotal,
		m.BroadcastDrops,
		m.InboundDropped,
		m.RelayPublishErrors,
		m.ProviderRequests,
		m.ProviderDur,
		m.ProviderBreakerState,
		m.ProviderBreakerTrips,
		m.StoreConflicts,
	)

	return m
}

func (m *Metrics) ObserveAnalysis(forecaster string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AnalysesTotal.WithLabelValues(forecaster, result).Inc()
	m.AnalysisDur.WithLabelValues(forecaster).Observe(d.Seconds())
}

func (m *Metrics) IncPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) IncJournalFailure() {
	if m != nil {
		m.JournalFailures.Inc()
	}
}

func (m *Metrics) IncTopMoverAlert() {
	if m != nil {
		m.TopMoverAlerts.Inc()
	}
}

func (m *Metrics) ObserveRefresh(d time.Duration, updated int) {
	if m == nil {
		return
	}
	m.RefreshTicks.Inc()
	m.RefreshDur.Observe(d.Seconds())
	if updated > 0 {
		m.RefreshLastUpdate.SetToCurrentTime()
	}
}

func (m *Metrics) IncRefreshSkipped(reason string) {
	if m != nil {
		m.RefreshSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}

func (m *Metrics) IncBroadcast(msgType string) {
	if m != nil {
		m.BroadcastsTotal.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) IncBroadcastDrop() {
	if m != nil {
		m.BroadcastDrops.Inc()
	}
}

func (m *Metrics) IncInboundDropped(reason string) {
	if m != nil {
		m.InboundDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncRelayPublishError() {
	if m != nil {
		m.RelayPublishErrors.Inc()
	}
}

func (m *Metrics) ObserveProvider(op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(op, status).Inc()
	m.ProviderDur.Observe(d.Seconds())
}

// SetBreakerState records a provider circuit breaker transition.
func (m *Metrics) SetBreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.ProviderBreakerState.Set(float64(state))
	if tripped {
		m.ProviderBreakerTrips.Inc()
	}
}

func (m *Metrics) IncStoreConflict() {
	if m != nil {
		m.StoreConflicts.Inc()
	}
}
