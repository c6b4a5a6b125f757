package clean

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityCleaner extracts main content using Mozilla's Readability
// algorithm, dropping navigation and boilerplate. Useful for dense
// marketing pages where the markdown conversion keeps too much chrome.
type ReadabilityCleaner struct {
	// BaseURL resolves relative links in the article. Optional.
	BaseURL string
}

// NewReadability creates a new Readability cleaner.
func NewReadability(baseURL string) *ReadabilityCleaner {
	return &ReadabilityCleaner{BaseURL: baseURL}
}

// Clean extracts the readable text content from HTML. When the
// algorithm finds no article body the result is empty, letting a
// fallback chain move on to the next cleaner.
func (c *ReadabilityCleaner) Clean(html string) (string, error) {
	var base *url.URL
	if c.BaseURL != "" {
		base, _ = url.Parse(c.BaseURL)
	}

	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return "", err
	}
	return cleanWhitespace(strings.TrimSpace(article.TextContent)), nil
}

// Name returns the cleaner type.
func (c *ReadabilityCleaner) Name() string {
	return "readability"
}
