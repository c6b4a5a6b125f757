// Package extract turns cleaned page content into partial community
// records. The Extractor interface is the pluggable capability
// boundary; the LLM implementation is the default but anything that
// can produce a partial record from page content satisfies it.
package extract

import (
	"context"
	"fmt"

	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/pkg/record"
)

// Request carries one page's content into an extraction pass.
type Request struct {
	// Category selects which fields the pass should focus on.
	Category nav.Category

	// URL is the page the content came from, recorded as source on
	// extracted entries.
	URL string

	// Content is the cleaned page text (markdown).
	Content string

	// Snapshot is a copy of the accumulator so far. Passes use it to
	// avoid re-extracting known data; they must not mutate it.
	Snapshot record.CommunityRecord

	// Feedback carries validator guidance on a retry pass, e.g. which
	// fields came back empty last round.
	Feedback []string
}

// Extractor produces a partial community record from page content.
type Extractor interface {
	Extract(ctx context.Context, req Request) (record.CommunityRecord, error)
}

// Error records which page and category an extraction failure belongs
// to, so the controller can skip the page and keep the run alive.
type Error struct {
	URL      string
	Category nav.Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %v", e.URL, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
