package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/model"
)

func TestGenerate_MixedRules(t *testing.T) {
	prices := []float64{100, 101, 99, 105}
	ema := []float64{100, 100.5, 100.2, 102}
	rsi := []float64{50, 35, 55, 38}

	got, err := Generate(prices, ema, rsi)
	require.NoError(t, err)
	assert.Equal(t, []model.Signal{
		model.SignalNeutral, // no previous observation
		model.SignalBuy,     // rsi 35 < 40
		model.SignalSell,    // 99 < 100.2 after 101 >= 100.5
		model.SignalBuy,     // rsi 38 < 40
	}, got)
}

func TestGenerate_BuyWinsTie(t *testing.T) {
	// Index 1: upward crossover (BUY clause) while rsi 75 > 60 (SELL clause).
	prices := []float64{99, 102}
	ema := []float64{100, 101}
	rsi := []float64{50, 75}

	got, err := Generate(prices, ema, rsi)
	require.NoError(t, err)
	assert.Equal(t, model.SignalBuy, got[1])
}

func TestGenerate_FirstIndexNeutral(t *testing.T) {
	got, err := Generate([]float64{10}, []float64{10}, []float64{5})
	require.NoError(t, err)
	assert.Equal(t, []model.Signal{model.SignalNeutral}, got)
}

func TestGenerate_Misaligned(t *testing.T) {
	_, err := Generate([]float64{1, 2}, []float64{1}, []float64{50, 50})
	assert.Error(t, err)
}

func TestClassify_Neutral(t *testing.T) {
	// Above the EMA on both days, rsi mid-range
	assert.Equal(t, model.SignalNeutral, Classify(105, 104, 100, 100, 50))
}

func TestSummarize(t *testing.T) {
	sigs := []model.Signal{model.SignalNeutral, model.SignalBuy, model.SignalSell, model.SignalBuy}
	st := Summarize(sigs, []float64{50, 35, 55, 38})
	assert.Equal(t, 3, st.TotalSignals)
	assert.Equal(t, 2, st.BuySignals)
	assert.Equal(t, 1, st.SellSignals)
	assert.Equal(t, 35.0, st.MinRSI)
	assert.Equal(t, 55.0, st.MaxRSI)
}

func TestRecent_WindowAndNeutralFilter(t *testing.T) {
	dates := []string{"d0", "d1", "d2", "d3"}
	prices := []float64{1, 2, 3, 4}
	sigs := []model.Signal{model.SignalBuy, model.SignalNeutral, model.SignalSell, model.SignalBuy}

	got := Recent(dates, prices, sigs, 3)
	require.Len(t, got, 2)
	assert.Equal(t, model.RecentSignal{Date: "d2", Type: model.SignalSell, Price: 3}, got[0])
	assert.Equal(t, "d3", got[1].Date)
}

func TestRecent_RoundsPrice(t *testing.T) {
	got := Recent([]string{"d0", "d1"}, []float64{10, 187.23456}, []model.Signal{model.SignalNeutral, model.SignalSell}, 20)
	require.Len(t, got, 1)
	assert.Equal(t, 187.23, got[0].Price)
}

func TestFromQuote(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		prevClose float64
		volume    float64
		want      model.Signal
	}{
		{"rise on heavy volume", 103, 100, 2_000_000, model.SignalBuy},
		{"rise on light volume", 103, 100, 500_000, model.SignalNeutral},
		{"drop", 97, 100, 10, model.SignalSell},
		{"small rise", 101.5, 100, 5_000_000, model.SignalNeutral},
		{"flat", 100, 100, 5_000_000, model.SignalNeutral},
		{"no previous close", 100, 0, 5_000_000, model.SignalNeutral},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromQuote(tc.price, tc.prevClose, tc.volume))
		})
	}
}
