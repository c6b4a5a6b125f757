package clean

import (
	"errors"
	"strings"
)

// ErrNoContent means no cleaner in a fallback chain produced output.
var ErrNoContent = errors.New("no cleaner produced content")

// FallbackCleaner tries each cleaner in order and returns the first
// non-empty result. A cleaner that errors or comes back empty hands
// the page to the next one.
type FallbackCleaner struct {
	cleaners []Cleaner
}

// NewFallback creates a cleaner that falls through the given cleaners
// until one produces output.
func NewFallback(cleaners ...Cleaner) *FallbackCleaner {
	return &FallbackCleaner{cleaners: cleaners}
}

// Clean runs the chain. Returns ErrNoContent when every cleaner fails
// or produces an empty result.
func (c *FallbackCleaner) Clean(html string) (string, error) {
	for _, cl := range c.cleaners {
		out, err := cl.Clean(html)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
	}
	return "", ErrNoContent
}

// Name returns the chained cleaner names.
func (c *FallbackCleaner) Name() string {
	names := make([]string, len(c.cleaners))
	for i, cl := range c.cleaners {
		names[i] = cl.Name()
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}
