package analysis

import (
	"context"
	"math"
	"sync"
	"time"

	"stockpulse/internal/model"
	"stockpulse/internal/notification"
)

// weekdaySeries builds n weekday bars starting 2024-01-02 with a gentle
// uptrend plus a wave so that every signal branch has a chance to fire.
func weekdaySeries(ticker string, n int) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		s.Bars = append(s.Bars, model.Bar{
			Date:   d,
			Close:  100 + 5*math.Sin(float64(i)/4) + 0.2*float64(i),
			Volume: float64(1_000_000 + i*1000),
		})
		d = d.AddDate(0, 0, 1)
	}
	return s
}

type fakeProvider struct {
	series model.PriceSeries
	err    error
	quotes map[string]model.Quote
}

func (p *fakeProvider) Quote(_ context.Context, ticker string) (model.Quote, error) {
	q, ok := p.quotes[ticker]
	if !ok {
		return model.Quote{}, model.ErrDataUnavailable
	}
	return q, nil
}

func (p *fakeProvider) History(_ context.Context, ticker string, _, _ time.Time) (model.PriceSeries, error) {
	if p.err != nil {
		return model.PriceSeries{}, p.err
	}
	s := p.series
	s.Ticker = ticker
	return s, nil
}

type stubForecaster struct {
	res *model.AnalysisResult
	err error
	got Request
}

func (f *stubForecaster) Name() string { return "stub" }

func (f *stubForecaster) Forecast(_ context.Context, req Request) (*model.AnalysisResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	out := *f.res
	return &out, nil
}

type memJournal struct {
	mu   sync.Mutex
	runs []model.AnalysisRun
	err  error
}

func (j *memJournal) Record(_ context.Context, run model.AnalysisRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	run.ID = int64(len(j.runs) + 1)
	j.runs = append(j.runs, run)
	return nil
}

func (j *memJournal) Runs(_ context.Context, ticker string, limit int) ([]model.AnalysisRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.AnalysisRun
	for i := len(j.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if j.runs[i].Ticker == ticker {
			out = append(out, j.runs[i])
		}
	}
	return out, nil
}

func (j *memJournal) Close() error { return nil }

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (n *recordingNotifier) Send(_ context.Context, a notification.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []model.TopMover
}

func (p *recordingPublisher) PublishStockUpdate(m model.TopMover) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, m)
}
