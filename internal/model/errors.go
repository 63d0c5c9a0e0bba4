package model

import "errors"

var (
	// ErrInsufficientHistory means a series is shorter than an indicator or
	// the predictor requires.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrDataUnavailable means the quote/history provider returned nothing.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrAnalysisFailed means the external forecast process failed or
	// produced output that could not be parsed.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrNoOverlappingData means accuracy had no actual/forecast pairs to compare.
	ErrNoOverlappingData = errors.New("no overlapping data")

	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)
