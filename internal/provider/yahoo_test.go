package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/model"
)

// 2024-03-01, 03-04, 03-05 at 14:30 UTC; the middle close is null.
const historyBody = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL"},
  "timestamp":[1709303400,1709562600,1709649000],
  "indicators":{"quote":[{"close":[180.5,null,175.1],"volume":[1000,2000,3000]}]}
}],"error":null}}`

const quoteBody = `{"chart":{"result":[{
  "meta":{"symbol":"MSFT","longName":"Microsoft Corporation","regularMarketPrice":412.0,
          "regularMarketVolume":2500000,"previousClose":400.0,"regularMarketTime":1709649000},
  "timestamp":[],"indicators":{"quote":[{}]}
}],"error":null}}`

func newTestYahoo(t *testing.T, h http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewYahoo(Options{
		BaseURL: srv.URL,
		ClientOptions: ClientOptions{
			Timeout:         2 * time.Second,
			RequestsPerSec:  100,
			MaxRetryElapsed: 2 * time.Second,
			RetryInitial:    5 * time.Millisecond,
			MaxRetries:      3,
		},
		BreakerFailures: 2,
		BreakerReset:    time.Minute,
	}, nil, zerolog.Nop())
}

func day(s string) time.Time {
	d, _ := time.Parse(model.DateLayout, s)
	return d
}

func TestHistory_ParsesAndSkipsNulls(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, historyBody)
	})

	series, err := y.History(context.Background(), "aapl", day("2024-03-01"), day("2024-03-05"))
	require.NoError(t, err)
	require.NoError(t, series.Validate())
	assert.Equal(t, "AAPL", series.Ticker)
	assert.Equal(t, []string{"2024-03-01", "2024-03-05"}, series.Dates())
	assert.Equal(t, []float64{180.5, 175.1}, series.Closes())
	assert.Equal(t, []float64{1000, 3000}, series.Volumes())
}

func TestHistory_EmptyIsDataUnavailable(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}]}}`)
	})
	_, err := y.History(context.Background(), "AAPL", day("2024-03-01"), day("2024-03-05"))
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestHistory_APIErrorIsDataUnavailable(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	_, err := y.History(context.Background(), "NOPE", day("2024-03-01"), day("2024-03-05"))
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "No data found")
}

func TestQuote(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		fmt.Fprint(w, quoteBody)
	})

	q, err := y.Quote(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Ticker)
	assert.Equal(t, "Microsoft Corporation", q.Company)
	assert.Equal(t, 412.0, q.Price)
	assert.Equal(t, 400.0, q.PreviousClose)
	assert.Equal(t, 2500000.0, q.Volume)
	assert.InDelta(t, 3.0, q.ChangePercent, 1e-9)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, quoteBody)
	})

	_, err := y.Quote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_NotFoundIsNotRetriedAndDoesNotTrip(t *testing.T) {
	var calls int32
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	})

	for i := 0; i < 3; i++ {
		_, err := y.Quote(context.Background(), "ZZZZ")
		require.ErrorIs(t, err, model.ErrDataUnavailable)
		assert.True(t, strings.Contains(err.Error(), "404"))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, StateClosed, y.breaker.CurrentState())
}

func TestBreakerOpensOnRepeatedOutage(t *testing.T) {
	var calls int32
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := y.Quote(context.Background(), "AAPL")
		require.Error(t, err)
	}
	require.Equal(t, StateOpen, y.breaker.CurrentState())

	before := atomic.LoadInt32(&calls)
	_, err := y.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.Contains(t, err.Error(), ErrCircuitOpen.Error())
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}
