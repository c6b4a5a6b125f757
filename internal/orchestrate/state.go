package orchestrate

import (
	"strings"

	"github.com/google/uuid"

	"github.com/leasescout/leasescout/internal/fetch"
	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/pkg/record"
)

// runState tracks everything accumulated over one extraction run.
// It is only ever touched from the controller's coordinating
// goroutine; worker results come in over a channel.
type runState struct {
	runID       string
	accumulator record.CommunityRecord

	// processed guards against fetching the same page twice during
	// discovery. Validator-directed retries bypass it on purpose.
	processed map[string]struct{}

	// cached keeps fetched pages per category so retry rounds know
	// where to send a focused pass.
	cached map[nav.Category][]fetch.RenderedPage

	// pending holds discovered candidates that did not fit in the
	// first round. Retry rounds drain these before re-fetching pages
	// already seen.
	pending []nav.Candidate

	round  int
	scores []int
}

func newRunState(seedURL string) *runState {
	return &runState{
		runID:       uuid.NewString(),
		accumulator: record.CommunityRecord{URL: seedURL},
		processed:   make(map[string]struct{}),
		cached:      make(map[nav.Category][]fetch.RenderedPage),
	}
}

// markProcessed records a URL as visited. Returns false when the URL
// was already processed.
func (s *runState) markProcessed(url string) bool {
	key := normalizeKey(url)
	if _, seen := s.processed[key]; seen {
		return false
	}
	s.processed[key] = struct{}{}
	return true
}

func (s *runState) wasProcessed(url string) bool {
	_, seen := s.processed[normalizeKey(url)]
	return seen
}

// merge folds a partial result into the accumulator.
func (s *runState) merge(partial record.CommunityRecord) {
	s.accumulator = record.Merge(s.accumulator, partial)
}

// recordScore appends a round score and reports whether it regressed
// from the previous round.
func (s *runState) recordScore(score int) (regressed bool) {
	if len(s.scores) > 0 && score < s.scores[len(s.scores)-1] {
		regressed = true
	}
	s.scores = append(s.scores, score)
	return regressed
}

// takePending removes and returns the queued candidates of one
// category.
func (s *runState) takePending(category nav.Category) []nav.Candidate {
	var taken []nav.Candidate
	rest := s.pending[:0]
	for _, cand := range s.pending {
		if cand.Category == category {
			taken = append(taken, cand)
			continue
		}
		rest = append(rest, cand)
	}
	s.pending = rest
	return taken
}

func (s *runState) cachePage(category nav.Category, page fetch.RenderedPage) {
	s.cached[category] = append(s.cached[category], page)
}

func normalizeKey(url string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(url)), "/")
}
