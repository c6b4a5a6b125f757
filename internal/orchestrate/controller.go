// Package orchestrate coordinates a full extraction run: fetch the
// seed page, discover candidate pages, dispatch extraction passes,
// merge partial results, and loop on validator feedback until the
// record is accepted or the retry budget runs out.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leasescout/leasescout/internal/clean"
	"github.com/leasescout/leasescout/internal/extract"
	"github.com/leasescout/leasescout/internal/fetch"
	"github.com/leasescout/leasescout/internal/logger"
	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/internal/validate"
	"github.com/leasescout/leasescout/pkg/record"
)

// Config tunes a run.
type Config struct {
	// Concurrency bounds simultaneous fetch+extract workers.
	Concurrency int

	// MaxValidationRounds caps validate/retry cycles. The first
	// extraction sweep counts as round one.
	MaxValidationRounds int

	// MaxCandidates bounds how many discovered pages one round will
	// process, floor plan and fee pages first.
	MaxCandidates int

	// RunTimeout bounds the entire run.
	RunTimeout time.Duration

	// FetchTimeout bounds each individual page fetch.
	FetchTimeout time.Duration

	// ContextFields names facts supplied by the caller that the
	// validator should not require from extraction.
	ContextFields []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:         3,
		MaxValidationRounds: 3,
		MaxCandidates:       10,
		RunTimeout:          3 * time.Minute,
		FetchTimeout:        30 * time.Second,
	}
}

// Result is the outcome of a completed run.
type Result struct {
	RunID        string                  `json:"run_id" yaml:"run_id"`
	URL          string                  `json:"url" yaml:"url"`
	Record       record.CommunityRecord  `json:"record" yaml:"record"`
	Report       validate.Report         `json:"report" yaml:"report"`
	Rounds       int                     `json:"rounds" yaml:"rounds"`
	PagesFetched int                     `json:"pages_fetched" yaml:"pages_fetched"`
	PageErrors   []string                `json:"page_errors,omitempty" yaml:"page_errors,omitempty"`
	StartedAt    time.Time               `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time               `json:"finished_at" yaml:"finished_at"`
}

// RunFailedError means the run produced nothing usable, typically
// because the seed page itself could not be fetched.
type RunFailedError struct {
	URL string
	Err error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("extraction run failed for %s: %v", e.URL, e.Err)
}

func (e *RunFailedError) Unwrap() error {
	return e.Err
}

// Controller drives extraction runs. All collaborators are injected
// so runs can be exercised without a browser or an API key.
type Controller struct {
	fetcher    fetch.Fetcher
	extractor  extract.Extractor
	validator  *validate.Validator
	classifier *nav.Classifier
	cleaner    clean.Cleaner
	config     Config
}

// New creates a controller.
func New(fetcher fetch.Fetcher, extractor extract.Extractor, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxValidationRounds <= 0 {
		cfg.MaxValidationRounds = def.MaxValidationRounds
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}

	return &Controller{
		fetcher:    fetcher,
		extractor:  extractor,
		validator:  validate.New(),
		classifier: nav.NewClassifier(),
		// Markdown keeps tables and lists intact; readability picks up
		// pages the markdown conversion cannot stomach.
		cleaner: clean.NewFallback(clean.NewMarkdown(), clean.NewReadability("")),
		config:  cfg,
	}
}

// task is one fetch-then-extract unit of work.
type task struct {
	url      string
	category nav.Category
	// page is set when the content is already fetched (seed page,
	// retry passes reusing cached pages before a forced re-fetch).
	page     *fetch.RenderedPage
	refetch  bool
	feedback []string
}

// taskResult carries a worker's output back to the coordinator.
type taskResult struct {
	task    task
	page    fetch.RenderedPage
	partial record.CommunityRecord
	err     error
}

// RunExtraction performs a full extraction run against a community
// website, starting at seedURL.
func (c *Controller) RunExtraction(ctx context.Context, seedURL string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
	defer cancel()

	state := newRunState(seedURL)
	result := Result{
		RunID:     state.runID,
		URL:       seedURL,
		StartedAt: time.Now(),
	}

	logger.Info("extraction run starting",
		"run_id", state.runID,
		"url", seedURL,
		"max_rounds", c.config.MaxValidationRounds)

	// The seed page anchors the run. If it cannot be fetched there is
	// nothing to extract from and the run fails outright.
	seedPage, err := c.fetchPage(ctx, seedURL)
	if err != nil {
		return result, &RunFailedError{URL: seedURL, Err: err}
	}
	state.markProcessed(seedURL)
	state.cachePage(nav.CategoryGeneral, seedPage)
	result.PagesFetched++

	state.merge(record.CommunityRecord{Pages: []record.Page{{Name: seedPage.Title, URL: seedPage.URL}}})

	candidates := c.classifier.Candidates(seedPage)
	if len(candidates) > c.config.MaxCandidates {
		// Overflow candidates are not lost; retry rounds pull from
		// them before re-fetching pages already seen.
		state.pending = candidates[c.config.MaxCandidates:]
		candidates = candidates[:c.config.MaxCandidates]
	}
	logger.Info("candidate pages discovered",
		"run_id", state.runID,
		"count", len(candidates),
		"deferred", len(state.pending))

	// Round one: a general pass over the seed plus a category pass
	// per discovered candidate.
	tasks := []task{{url: seedPage.URL, category: nav.CategoryGeneral, page: &seedPage}}
	for _, cand := range candidates {
		if state.wasProcessed(cand.URL) {
			continue
		}
		state.markProcessed(cand.URL)
		tasks = append(tasks, task{url: cand.URL, category: cand.Category})
	}

	var report validate.Report
	for {
		state.round++
		fetched, pageErrs := c.runRound(ctx, state, tasks)
		result.PagesFetched += fetched
		result.PageErrors = append(result.PageErrors, pageErrs...)

		report = c.validator.Validate(state.accumulator, validate.Options{
			ContextFields: c.config.ContextFields,
		})
		report.ScoreRegression = state.recordScore(report.Score)
		if report.ScoreRegression {
			report.QualityIssues = append(report.QualityIssues,
				fmt.Sprintf("score regressed in round %d", state.round))
			logger.Warn("validation score regressed",
				"run_id", state.runID,
				"round", state.round,
				"scores", state.scores)
		}

		logger.Info("validation round complete",
			"run_id", state.runID,
			"round", state.round,
			"score", report.Score,
			"passed", report.Passed)

		if report.Passed {
			break
		}
		if state.round >= c.config.MaxValidationRounds || ctx.Err() != nil {
			report.ForcedAccept = true
			logger.Warn("retry budget exhausted, accepting incomplete record",
				"run_id", state.runID,
				"rounds", state.round,
				"score", report.Score)
			break
		}

		tasks = c.retryTasks(state, report)
		if len(tasks) == 0 {
			report.ForcedAccept = true
			break
		}
	}

	if state.accumulator.IsEmpty() {
		return result, &RunFailedError{URL: seedURL, Err: errors.New("no data extracted")}
	}

	result.Record = state.accumulator
	result.Report = report
	result.Rounds = state.round
	result.FinishedAt = time.Now()

	logger.Info("extraction run finished",
		"run_id", state.runID,
		"rounds", result.Rounds,
		"pages", result.PagesFetched,
		"score", report.Score,
		"forced_accept", report.ForcedAccept)
	return result, nil
}

// categoryPhases orders extraction inside a round. The general phase
// runs first so floor plan and fee passes see its facts (community
// name, address) in their snapshot.
var categoryPhases = []nav.Category{nav.CategoryGeneral, nav.CategoryFloorPlan, nav.CategoryFee}

// runRound executes one round of tasks in category phases. Each phase
// completes and merges before the next starts.
func (c *Controller) runRound(ctx context.Context, state *runState, tasks []task) (pagesFetched int, pageErrors []string) {
	grouped := make(map[nav.Category][]task, len(categoryPhases))
	for _, t := range tasks {
		grouped[t.category] = append(grouped[t.category], t)
	}

	order := append([]nav.Category(nil), categoryPhases...)
	for category := range grouped {
		known := false
		for _, cat := range order {
			if cat == category {
				known = true
				break
			}
		}
		if !known {
			order = append(order, category)
		}
	}

	for _, category := range order {
		phase := grouped[category]
		if len(phase) == 0 {
			continue
		}
		fetched, errs := c.runTasks(ctx, state, phase)
		pagesFetched += fetched
		pageErrors = append(pageErrors, errs...)
	}
	return pagesFetched, pageErrors
}

// runTasks executes fetch+extract tasks on a bounded worker pool.
// Merging stays on this goroutine so the accumulator is never shared.
func (c *Controller) runTasks(ctx context.Context, state *runState, tasks []task) (pagesFetched int, pageErrors []string) {
	results := make(chan taskResult, len(tasks))

	// Workers see a snapshot of the accumulator as of the round start.
	// The live accumulator is only touched on this goroutine.
	snapshot := state.accumulator.Clone()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for _, t := range tasks {
		g.Go(func() error {
			results <- c.runTask(gctx, t, snapshot)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			// A failed page costs itself, not the run. Challenge
			// pages in particular are expected on some candidates.
			logger.Warn("page skipped",
				"run_id", state.runID,
				"url", res.task.url,
				"error", res.err)
			pageErrors = append(pageErrors, fmt.Sprintf("%s: %v", res.task.url, res.err))
			continue
		}

		if res.task.page == nil || res.task.refetch {
			pagesFetched++
		}
		state.cachePage(res.task.category, res.page)

		state.merge(res.partial)
		state.merge(record.CommunityRecord{Pages: []record.Page{{Name: res.page.Title, URL: res.page.URL}}})
	}

	return pagesFetched, pageErrors
}

// runTask fetches one page (unless already rendered) and runs the
// category's extraction pass on it.
func (c *Controller) runTask(ctx context.Context, t task, snapshot record.CommunityRecord) taskResult {
	res := taskResult{task: t}

	if t.page != nil && !t.refetch {
		res.page = *t.page
	} else {
		page, err := c.fetchPage(ctx, t.url)
		if err != nil {
			res.err = err
			return res
		}
		res.page = page
	}

	content, err := c.cleaner.Clean(res.page.HTML)
	if err != nil || content == "" {
		// Fall back to the parsed text when markdown conversion has
		// nothing to offer.
		content = res.page.Text
	}

	partial, err := c.extractor.Extract(ctx, extract.Request{
		Category: t.category,
		URL:      res.page.URL,
		Content:  content,
		Snapshot: snapshot,
		Feedback: t.feedback,
	})
	if err != nil {
		res.err = err
		return res
	}

	res.partial = partial
	return res
}

// retryTasks maps validator recommendations onto focused re-extraction
// passes. Candidates deferred by the discovery cap are visited first;
// only when none remain for a category are its pages re-fetched, so a
// stale render cannot starve the retry of the data it is looking for.
func (c *Controller) retryTasks(state *runState, report validate.Report) []task {
	hintsByCategory := make(map[nav.Category][]string)
	for _, rec := range report.Recommendations {
		hintsByCategory[rec.Category] = append(hintsByCategory[rec.Category], rec.Hint)
	}

	var tasks []task
	seen := make(map[string]struct{})
	for category, hints := range hintsByCategory {
		deferred := 0
		for _, cand := range state.takePending(category) {
			if !state.markProcessed(cand.URL) {
				continue
			}
			tasks = append(tasks, task{url: cand.URL, category: category, feedback: hints})
			deferred++
		}
		if deferred > 0 {
			continue
		}

		pages := state.cached[category]
		if len(pages) == 0 {
			// No page of this category was ever found. Re-run the
			// pass against the seed page, which often carries the
			// missing facts in its footer.
			pages = state.cached[nav.CategoryGeneral][:1]
		}
		for _, page := range pages {
			key := string(category) + "\x00" + normalizeKey(page.URL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tasks = append(tasks, task{
				url:      page.URL,
				category: category,
				page:     &page,
				refetch:  true,
				feedback: hints,
			})
		}
	}

	logger.Debug("retry round planned",
		"run_id", state.runID,
		"tasks", len(tasks))
	return tasks
}

// fetchPage fetches one page under the per-fetch timeout.
func (c *Controller) fetchPage(ctx context.Context, url string) (fetch.RenderedPage, error) {
	return c.fetcher.Fetch(ctx, url, fetch.Options{Timeout: c.config.FetchTimeout})
}
