package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/leasescout/leasescout/internal/logger"
)

// DynamicConfig holds configuration for the dynamic fetcher.
type DynamicConfig struct {
	UserAgent         string
	Timeout           time.Duration
	WaitDuration      time.Duration
	RequestsPerSecond float64
}

// DefaultDynamicConfig returns sensible defaults. The post-load wait
// gives SPA sites time to hydrate their navigation.
func DefaultDynamicConfig() DynamicConfig {
	return DynamicConfig{
		UserAgent:         randomUserAgent(),
		Timeout:           30 * time.Second,
		WaitDuration:      2 * time.Second,
		RequestsPerSecond: 1,
	}
}

// DynamicFetcher uses chromedp for JavaScript-rendered pages.
type DynamicFetcher struct {
	config    DynamicConfig
	allocCtx  context.Context
	cancelCtx context.CancelFunc
	limiter   *rate.Limiter
}

// NewDynamic creates a dynamic fetcher with a shared browser allocator.
// Each Fetch runs in its own browser context.
func NewDynamic(cfg DynamicConfig) (*DynamicFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = randomUserAgent()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultDynamicConfig().Timeout
	}

	// Include stealth options to avoid trivial bot detection
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &DynamicFetcher{
		config:    cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancelAlloc,
		limiter:   limiter,
	}, nil
}

// Fetch retrieves page content using a headless browser.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (RenderedPage, error) {
	logger.Debug("dynamic fetch starting", "url", targetURL)

	result := RenderedPage{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx)
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var html string
	var title string

	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
	}

	if opts.WaitForSelector != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitForSelector))
	} else {
		actions = append(actions, chromedp.WaitVisible("body"))
	}

	wait := opts.WaitDuration
	if wait == 0 {
		wait = f.config.WaitDuration
	}
	if wait > 0 {
		actions = append(actions, chromedp.Sleep(wait))
	}

	actions = append(actions,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %s", ErrFetchTimeout, targetURL)
		}
		return result, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	result.HTML = html
	result.Title = title
	result.StatusCode = 200 // chromedp doesn't easily expose status codes

	if err := parsePage(&result); err != nil {
		return result, fmt.Errorf("failed to parse content: %w", err)
	}

	if detectChallenge(result) {
		logger.Debug("dynamic fetch blocked by challenge", "url", targetURL, "title", result.Title)
		return result, fmt.Errorf("%w: %q", ErrChallengeDetected, result.Title)
	}

	logger.Debug("dynamic fetch complete",
		"url", targetURL,
		"title", result.Title,
		"links", len(result.Links),
		"clickables", len(result.Clickables))
	return result, nil
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}
