// Package provider fetches quotes and daily history from the Yahoo Finance
// chart API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// HTTPStatusError represents an error due to a non-200 HTTP status code.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether a status is worth retrying.
func (e *HTTPStatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientOptions holds options for creating a new client.
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  float64
	MaxRetryElapsed time.Duration
	RetryInitial    time.Duration
	MaxRetries      uint64 // 0 means bounded by MaxRetryElapsed only
}

// client wraps http.Client with rate limiting and exponential-backoff retries.
type client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    ClientOptions
}

func newClient(opts ClientOptions) *client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}
	if opts.RetryInitial == 0 {
		opts.RetryInitial = 200 * time.Millisecond
	}
	burst := int(opts.RequestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), burst),
		opts:    opts,
	}
}

// get performs a GET with rate limiting and retries and returns the body
// of a 200 response. 4xx other than 429 fail without retry.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			snippet := string(data)
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: snippet}
			if !statusErr.retryable() {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}
		body = data
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.opts.RetryInitial
	exp.MaxElapsedTime = c.opts.MaxRetryElapsed
	var bo backoff.BackOff = exp
	if c.opts.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, c.opts.MaxRetries)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}
