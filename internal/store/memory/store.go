// Package memory is an in-process StockStore used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stockpulse/internal/model"
)

// Store keeps StockState per ticker behind a per-key lock.
type Store struct {
	mu     sync.RWMutex
	states map[string]*model.StockState
	locks  map[string]*sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{
		states: make(map[string]*model.StockState),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Store) keyLock(ticker string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ticker] = l
	}
	return l
}

// Get returns a copy of the stored state.
func (s *Store) Get(_ context.Context, ticker string) (*model.StockState, error) {
	ticker = strings.ToUpper(ticker)
	s.mu.RLock()
	st, ok := s.states[ticker]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stock %s: %w", ticker, model.ErrNotFound)
	}
	return clone(st), nil
}

// Update serializes fn per ticker. fn works on a copy; the copy is stored
// only when fn succeeds.
func (s *Store) Update(ctx context.Context, ticker string, fn model.UpdateFunc) (*model.StockState, error) {
	ticker = strings.ToUpper(ticker)
	l := s.keyLock(ticker)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	cur, ok := s.states[ticker]
	s.mu.RUnlock()

	next := &model.StockState{Ticker: ticker}
	if ok {
		next = clone(cur)
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Ticker = ticker

	s.mu.Lock()
	s.states[ticker] = next
	s.mu.Unlock()
	return clone(next), nil
}

// Recent returns all states, most recently updated first.
func (s *Store) Recent(_ context.Context) ([]model.StockState, error) {
	s.mu.RLock()
	out := make([]model.StockState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *clone(st))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

func clone(st *model.StockState) *model.StockState {
	cp := *st
	cp.PredictionHistory = append([]model.PredictionRecord(nil), st.PredictionHistory...)
	return &cp
}
