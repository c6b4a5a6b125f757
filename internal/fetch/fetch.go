// Package fetch defines page retrieval for rental community sites.
// Implement the Fetcher interface to create custom fetchers with specific
// rendering, authentication, or anti-bot requirements.
package fetch

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves and parses page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (RenderedPage, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic fetchers)
	WaitDuration    time.Duration // Additional wait after load
	Headers         map[string]string
}

// Link is a hyperlink found on a page, with its visible label.
type Link struct {
	URL  string
	Text string
}

// Clickable is a non-anchor element that behaves like navigation:
// a button, a role=button div, or anything carrying a data-* route
// attribute. Path holds the navigation target when one can be
// determined from attributes.
type Clickable struct {
	Label string
	Path  string
}

// RenderedPage represents fetched and parsed page data.
type RenderedPage struct {
	URL         string
	HTML        string
	Text        string // Extracted readable text
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time

	Links      []Link      // Anchor links found on the page
	Clickables []Clickable // Button-like navigation elements
	ScriptSrcs []string    // Inline script bodies, for route mining
}

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, fetch.ErrChallengeDetected).
var (
	// ErrChallengeDetected indicates the site served an anti-bot
	// interstitial (Cloudflare, CAPTCHA) instead of real content.
	ErrChallengeDetected = errors.New("bot challenge detected")
	// ErrRenderFailure indicates the browser could not render the page.
	ErrRenderFailure = errors.New("page render failed")
	// ErrFetchTimeout indicates the fetch exceeded its deadline.
	ErrFetchTimeout = errors.New("fetch timeout")
)

// userAgents is a small pool of realistic desktop browser identities.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// randomUserAgent picks a user agent from the pool.
func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
