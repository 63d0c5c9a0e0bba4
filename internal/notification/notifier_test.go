package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/model"
)

func TestTopMoverAlert(t *testing.T) {
	st := &model.StockState{Ticker: "NVDA", LastPrice: 900, ChangePercent: -5.5, UpdatedAt: time.Unix(10, 0)}
	a := TopMoverAlert(st, "refresh")

	assert.Equal(t, AlertWarning, a.Level)
	assert.Equal(t, model.SignalNeutral, a.Signal)
	assert.Equal(t, "NVDA is a top mover", a.Title)
	assert.Contains(t, a.Message, "-5.50%")

	st.ChangePercent = 2.5
	assert.Equal(t, AlertInfo, TopMoverAlert(st, "analysis").Level)
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Ticker: "AAPL", ChangePercent: 3})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, 3.0, got.ChangePercent)
	assert.False(t, got.At.IsZero())
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, zerolog.Nop()).Send(context.Background(), Alert{})
	assert.Error(t, err)
}

type recordingNotifier struct{ alerts []Alert }

func (r *recordingNotifier) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func TestTopMoverAlerter(t *testing.T) {
	var nilAlerter *TopMoverAlerter
	nilAlerter.Notify(context.Background(), &model.StockState{Ticker: "X"}, "refresh")
	assert.Nil(t, NewTopMoverAlerter(nil, nil, zerolog.Nop()))

	rec := &recordingNotifier{}
	a := NewTopMoverAlerter(rec, nil, zerolog.Nop())
	a.Notify(context.Background(), &model.StockState{Ticker: "AMD", ChangePercent: 3}, "analysis")
	require.Len(t, rec.alerts, 1)
	assert.Equal(t, "analysis", rec.alerts[0].Source)
}

// telegramServer fakes the two Bot API methods the notifier calls.
func telegramServer(t *testing.T, token string, sent *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + token + "/getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`))
		case "/bot" + token + "/sendMessage":
			require.NoError(t, r.ParseForm())
			*sent = r.PostForm
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-1001,"type":"group"}}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramNotifier_SendsMarkdownMessage(t *testing.T) {
	var sent url.Values
	srv := telegramServer(t, "123:abc", &sent)

	n := NewTelegramNotifier("123:abc", "-1001", zerolog.Nop())
	n.endpoint = srv.URL + "/bot%s/%s"

	st := &model.StockState{Ticker: "TSLA", LastPrice: 251.5, ChangePercent: -3.25}
	require.NoError(t, n.Send(context.Background(), TopMoverAlert(st, "refresh")))

	assert.Equal(t, "-1001", sent.Get("chat_id"))
	assert.Equal(t, "MarkdownV2", sent.Get("parse_mode"))
	text := sent.Get("text")
	assert.Contains(t, text, "📉 *TSLA is a top mover*")
	assert.Contains(t, text, `\-3\.25%`)
	assert.Contains(t, text, "_via refresh_")
}

func TestTelegramNotifier_ChannelName(t *testing.T) {
	var sent url.Values
	srv := telegramServer(t, "123:abc", &sent)

	n := NewTelegramNotifier("123:abc", "@market_alerts", zerolog.Nop())
	n.endpoint = srv.URL + "/bot%s/%s"
	require.NoError(t, n.Send(context.Background(), Alert{Title: "x", Ticker: "AAPL"}))
	assert.Equal(t, "@market_alerts", sent.Get("chat_id"))
}

func TestTelegramNotifier_RejectedTokenIsRedacted(t *testing.T) {
	var sent url.Values
	srv := telegramServer(t, "123:abc", &sent)

	n := NewTelegramNotifier("999:secret", "1", zerolog.Nop())
	n.endpoint = srv.URL + "/bot%s/%s"
	err := n.Send(context.Background(), Alert{Ticker: "AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.NotContains(t, err.Error(), "999:secret")
	assert.Nil(t, sent)
}
