package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leasescout/leasescout/internal/llm"
	"github.com/leasescout/leasescout/internal/logger"
	"github.com/leasescout/leasescout/pkg/record"
)

// Config holds LLM extractor settings.
type Config struct {
	MaxRetries      int
	Temperature     float64
	MaxTokens       int
	MaxContentBytes int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      2,
		Temperature:     0.1,
		MaxTokens:       8192,
		MaxContentBytes: 120_000,
	}
}

// LLMExtractor performs LLM-based extraction against any registered
// provider.
type LLMExtractor struct {
	provider llm.Provider
	config   Config
	validate *validator.Validate
}

// Option configures the extractor.
type Option func(*Config)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithTemperature sets the LLM temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// NewLLM creates an LLM-backed extractor.
func NewLLM(provider llm.Provider, opts ...Option) *LLMExtractor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &LLMExtractor{
		provider: provider,
		config:   cfg,
		validate: validator.New(),
	}
}

// Extract runs one extraction pass. Malformed responses are retried
// with the parse error echoed back so the model can self-correct.
func (e *LLMExtractor) Extract(ctx context.Context, req Request) (record.CommunityRecord, error) {
	logger.Debug("extraction pass starting",
		"url", req.URL,
		"category", req.Category,
		"content_size", len(req.Content),
		"provider", e.provider.Name())

	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		partial, err := e.extractOnce(ctx, req, lastErr)
		if err == nil {
			partial = e.sanitize(partial, req.URL)
			logger.Debug("extraction pass complete",
				"url", req.URL,
				"category", req.Category,
				"attempt", attempt+1,
				"fees", len(partial.Fees),
				"floor_plans", len(partial.FloorPlans))
			return partial, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
		logger.Debug("extraction attempt failed, retrying",
			"url", req.URL,
			"attempt", attempt+1,
			"error", err)
	}

	return record.CommunityRecord{}, &Error{URL: req.URL, Category: req.Category, Err: lastErr}
}

// extractOnce performs a single LLM call and decodes the result.
func (e *LLMExtractor) extractOnce(ctx context.Context, req Request, previousErr error) (record.CommunityRecord, error) {
	prompt := BuildPrompt(req, e.config.MaxContentBytes)
	if previousErr != nil {
		prompt += fmt.Sprintf("\n## Previous Attempt Error\nThe previous response could not be used:\n%v\nReturn corrected JSON.\n", previousErr)
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt()},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  Schema(req.Category),
	})
	if err != nil {
		return record.CommunityRecord{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	var partial record.CommunityRecord
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &partial); err != nil {
		return record.CommunityRecord{}, fmt.Errorf("failed to parse response as JSON: %w (response: %s)", err, truncateForError(resp.Content))
	}

	return partial, nil
}

// sanitize drops entries that fail struct validation and stamps the
// source URL on extracted fees. A bad entry should cost itself, not
// the whole pass.
func (e *LLMExtractor) sanitize(partial record.CommunityRecord, sourceURL string) record.CommunityRecord {
	fees := partial.Fees[:0]
	for _, fee := range partial.Fees {
		if err := e.validate.Struct(fee); err != nil {
			logger.Warn("dropping invalid fee from extraction", "fee", fee.Name, "error", err)
			continue
		}
		if fee.SourceURL == "" {
			fee.SourceURL = sourceURL
		}
		fees = append(fees, fee)
	}
	partial.Fees = fees

	plans := partial.FloorPlans[:0]
	for _, plan := range partial.FloorPlans {
		if err := e.validate.Struct(plan); err != nil {
			logger.Warn("dropping invalid floor plan from extraction", "plan", plan.Name, "error", err)
			continue
		}
		plans = append(plans, plan)
	}
	partial.FloorPlans = plans

	amenities := partial.Amenities[:0]
	for _, a := range partial.Amenities {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		amenities = append(amenities, a)
	}
	partial.Amenities = amenities

	return partial
}

// isRetryable determines if an error should trigger another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if strings.Contains(errStr, "failed to parse") {
		return true
	}
	if strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "429") {
		return true
	}
	return false
}

// stripCodeFence removes a markdown code fence if the model wrapped
// its JSON in one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncateForError truncates content for error messages.
func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
