package clean

import (
	md "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MarkdownCleaner converts HTML to Markdown. Markdown preserves the
// headers, lists and tables that rental sites use for floor plans and
// fee schedules, which plain text extraction flattens away.
type MarkdownCleaner struct{}

// NewMarkdown creates a new Markdown cleaner.
func NewMarkdown() *MarkdownCleaner {
	return &MarkdownCleaner{}
}

// Clean converts HTML to Markdown.
func (c *MarkdownCleaner) Clean(html string) (string, error) {
	markdown, err := md.ConvertString(html)
	if err != nil {
		return "", err
	}
	return cleanWhitespace(markdown), nil
}

// Name returns the cleaner type.
func (c *MarkdownCleaner) Name() string {
	return "markdown"
}
