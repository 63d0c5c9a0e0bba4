package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/model"
)

func TestGet_NotFound(t *testing.T) {
	_, err := New().Get(context.Background(), "AAPL")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdate_CreatesAndNormalizesTicker(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Update(ctx, "aapl", func(st *model.StockState) error {
		st.LastPrice = 190
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, 190.0, got.LastPrice)
}

func TestUpdate_FailureLeavesStateUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Update(ctx, "MSFT", func(st *model.StockState) error { st.LastPrice = 1; return nil })

	_, err := s.Update(ctx, "MSFT", func(st *model.StockState) error {
		st.LastPrice = 999
		return errors.New("nope")
	})
	require.Error(t, err)

	got, _ := s.Get(ctx, "MSFT")
	assert.Equal(t, 1.0, got.LastPrice)
}

func TestUpdate_ConcurrentAppendsAreNotLost(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, "GOOGL", func(st *model.StockState) error {
				st.AddPrediction(model.PredictionRecord{PredictedPrice: float64(i)})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "GOOGL")
	require.NoError(t, err)
	assert.Len(t, got.PredictionHistory, 25)
}

func TestRecent_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, tk := range []string{"A", "B", "C"} {
		at := base.Add(time.Duration(i) * time.Hour)
		_, err := s.Update(ctx, tk, func(st *model.StockState) error { st.UpdatedAt = at; return nil })
		require.NoError(t, err)
	}

	got, err := s.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{got[0].Ticker, got[1].Ticker, got[2].Ticker})
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Update(ctx, "AMZN", func(st *model.StockState) error {
		st.AddPrediction(model.PredictionRecord{Date: "x"})
		return nil
	})

	got, _ := s.Get(ctx, "AMZN")
	got.PredictionHistory[0].Date = "mutated"

	again, _ := s.Get(ctx, "AMZN")
	assert.Equal(t, "x", again.PredictionHistory[0].Date)
}
