package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/leasescout/leasescout/internal/logger"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond throttles outbound requests. Zero disables
	// throttling.
	RequestsPerSecond float64
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:         randomUserAgent(),
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// StaticFetcher uses Colly for plain HTTP fetching. It cannot run
// JavaScript, so SPA sites should use the dynamic fetcher instead.
type StaticFetcher struct {
	config  StaticConfig
	limiter *rate.Limiter
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = randomUserAgent()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultStaticConfig().Timeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &StaticFetcher{config: cfg, limiter: limiter}
}

// Fetch retrieves page content using Colly.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (RenderedPage, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	result := RenderedPage{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	// Create a new collector for each request
	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	if len(opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
		logger.Debug("static fetch error", "status", result.StatusCode, "error", err)
	})

	if err := c.Visit(targetURL); err != nil {
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}

	if fetchErr != nil {
		return result, fetchErr
	}

	if result.HTML != "" {
		if err := parsePage(&result); err != nil {
			return result, fmt.Errorf("failed to parse content: %w", err)
		}
	}

	if detectChallenge(result) {
		logger.Debug("static fetch blocked by challenge", "url", targetURL, "title", result.Title)
		return result, fmt.Errorf("%w: %q", ErrChallengeDetected, result.Title)
	}

	logger.Debug("static fetch complete",
		"url", targetURL,
		"title", result.Title,
		"links", len(result.Links))
	return result, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}
