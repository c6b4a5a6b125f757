package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/leasescout/leasescout/internal/logger"
)

// RetryFetcher wraps another fetcher with bounded retries for
// transient failures. Challenge pages and timeouts are not retried;
// repeating those requests only burns the crawl budget.
type RetryFetcher struct {
	inner    Fetcher
	attempts int
	backoff  time.Duration
}

// WithRetry wraps f so each Fetch is attempted up to attempts times.
func WithRetry(f Fetcher, attempts int) *RetryFetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryFetcher{inner: f, attempts: attempts, backoff: time.Second}
}

// Fetch delegates to the wrapped fetcher, retrying transient errors.
func (r *RetryFetcher) Fetch(ctx context.Context, url string, opts Options) (RenderedPage, error) {
	var page RenderedPage
	var err error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		page, err = r.inner.Fetch(ctx, url, opts)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, ErrChallengeDetected) || errors.Is(err, ErrFetchTimeout) || ctx.Err() != nil {
			return page, err
		}
		if attempt < r.attempts {
			logger.Debug("fetch retrying", "url", url, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return page, ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}
	return page, err
}

// Close closes the wrapped fetcher.
func (r *RetryFetcher) Close() error {
	return r.inner.Close()
}

// Type returns the wrapped fetcher's type.
func (r *RetryFetcher) Type() string {
	return r.inner.Type()
}
