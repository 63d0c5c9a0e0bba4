package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
)

// Options configures the Yahoo provider.
type Options struct {
	BaseURL string
	ClientOptions

	// Breaker tuning; zero values mean 5 failures / 30s.
	BreakerFailures int
	BreakerReset    time.Duration
}

// Yahoo implements model.QuoteProvider against the v8 chart API.
type Yahoo struct {
	baseURL string
	client  *client
	breaker *CircuitBreaker
	m       *metrics.Metrics
	log     zerolog.Logger
}

// NewYahoo creates a provider.
func NewYahoo(opts Options, m *metrics.Metrics, log zerolog.Logger) *Yahoo {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://query1.finance.yahoo.com"
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerReset == 0 {
		opts.BreakerReset = 30 * time.Second
	}

	y := &Yahoo{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  newClient(opts.ClientOptions),
		breaker: NewCircuitBreaker(opts.BreakerFailures, opts.BreakerReset),
		m:       m,
		log:     log.With().Str("component", "yahoo").Logger(),
	}
	// Unknown tickers are the caller's problem, not an upstream outage.
	y.breaker.isFailure = func(err error) bool {
		var se *HTTPStatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return false
		}
		return !errors.Is(err, context.Canceled)
	}
	y.breaker.OnStateChange = func(from, to State) {
		y.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker transition")
		m.SetBreakerState(int(to), to == StateOpen)
	}
	return y
}

// chartResponse is the subset of the chart API response we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol              string   `json:"symbol"`
				LongName            string   `json:"longName"`
				ShortName           string   `json:"shortName"`
				RegularMarketPrice  *float64 `json:"regularMarketPrice"`
				RegularMarketVolume *float64 `json:"regularMarketVolume"`
				RegularMarketTime   int64    `json:"regularMarketTime"`
				ChartPreviousClose  *float64 `json:"chartPreviousClose"`
				PreviousClose       *float64 `json:"previousClose"`
				ExchangeTimezone    string   `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) fetchChart(ctx context.Context, op, ticker string, q url.Values) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	start := time.Now()
	var body []byte
	err := y.breaker.Execute(func() error {
		var err error
		body, err = y.client.get(ctx, u)
		return err
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	y.m.ObserveProvider(op, status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("yahoo %s %s: %v: %w", op, ticker, err, model.ErrDataUnavailable)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo %s %s: decode: %v: %w", op, ticker, err, model.ErrDataUnavailable)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s %s: %s: %w", op, ticker, chart.Chart.Error.Description, model.ErrDataUnavailable)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s %s: no result: %w", op, ticker, model.ErrDataUnavailable)
	}
	return &chart, nil
}

// History returns daily closes in [start, end] (inclusive, by calendar day).
func (y *Yahoo) History(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	ticker = strings.ToUpper(ticker)
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.AddDate(0, 0, 1).Unix()))
	q.Set("events", "history")

	chart, err := y.fetchChart(ctx, "history", ticker, q)
	if err != nil {
		return model.PriceSeries{Ticker: ticker}, err
	}

	res := chart.Chart.Result[0]
	var closes, volumes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
		volumes = res.Indicators.Quote[0].Volume
	}

	// One bar per calendar day; the last sample of a day wins.
	byDay := make(map[string]model.Bar, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] == 0 {
			continue // holidays and halted sessions come back null
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		if day.Before(start.Truncate(24*time.Hour)) || day.After(end) {
			continue
		}
		bar := model.Bar{Date: day, Close: *closes[i]}
		if i < len(volumes) && volumes[i] != nil {
			bar.Volume = *volumes[i]
		}
		byDay[day.Format(model.DateLayout)] = bar
	}

	series := model.PriceSeries{Ticker: ticker, Bars: make([]model.Bar, 0, len(byDay))}
	for _, b := range byDay {
		series.Bars = append(series.Bars, b)
	}
	sort.Slice(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date) })

	if len(series.Bars) == 0 {
		return series, fmt.Errorf("yahoo history %s: no bars in range: %w", ticker, model.ErrDataUnavailable)
	}
	return series, nil
}

// Quote returns the latest regular-market quote.
func (y *Yahoo) Quote(ctx context.Context, ticker string) (model.Quote, error) {
	ticker = strings.ToUpper(ticker)
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "5d")

	chart, err := y.fetchChart(ctx, "quote", ticker, q)
	if err != nil {
		return model.Quote{}, err
	}
	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return model.Quote{}, fmt.Errorf("yahoo quote %s: no market price: %w", ticker, model.ErrDataUnavailable)
	}

	quote := model.Quote{
		Ticker:  ticker,
		Company: meta.LongName,
		Price:   *meta.RegularMarketPrice,
		Time:    time.Unix(meta.RegularMarketTime, 0).UTC(),
	}
	if quote.Company == "" {
		quote.Company = meta.ShortName
	}
	if meta.RegularMarketVolume != nil {
		quote.Volume = *meta.RegularMarketVolume
	}
	switch {
	case meta.PreviousClose != nil:
		quote.PreviousClose = *meta.PreviousClose
	case meta.ChartPreviousClose != nil:
		quote.PreviousClose = *meta.ChartPreviousClose
	}
	if quote.PreviousClose != 0 {
		quote.ChangePercent = (quote.Price - quote.PreviousClose) / quote.PreviousClose * 100
	}
	return quote, nil
}
