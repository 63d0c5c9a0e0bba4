package analysis

import (
	"sort"
	"time"

	"stockpulse/internal/model"
)

const (
	// DefaultTopMoversLimit is the snapshot size when none is given.
	DefaultTopMoversLimit = 4

	maxFlaggedCandidates = 8
	freshWindow          = 24 * time.Hour
)

// SelectTopMovers picks up to limit entries: flagged movers first, most
// recently updated first and capped at 8, then unflagged states updated in
// the last 24 hours. states need not be sorted.
func SelectTopMovers(states []model.StockState, now time.Time, limit int) []model.TopMover {
	if limit <= 0 {
		limit = DefaultTopMoversLimit
	}
	sorted := make([]model.StockState, len(states))
	copy(sorted, states)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	out := make([]model.TopMover, 0, limit)
	flagged := 0
	for i := range sorted {
		if !sorted[i].IsTopMover || flagged == maxFlaggedCandidates {
			continue
		}
		out = append(out, sorted[i].TopMover())
		flagged++
	}
	if len(out) < limit {
		cutoff := now.Add(-freshWindow)
		for i := range sorted {
			if len(out) == limit {
				break
			}
			if sorted[i].IsTopMover || sorted[i].UpdatedAt.Before(cutoff) {
				continue
			}
			out = append(out, sorted[i].TopMover())
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
