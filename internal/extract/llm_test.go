package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leasescout/leasescout/internal/llm"
	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/pkg/record"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	i := p.calls
	p.calls++
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			p.prompts = append(p.prompts, m.Content)
		}
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return llm.CompletionResponse{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return llm.CompletionResponse{}, errors.New("no scripted response")
	}
	return llm.CompletionResponse{Content: p.responses[i]}, nil
}

func (p *scriptedProvider) Name() string             { return "scripted" }
func (p *scriptedProvider) SupportsJSONSchema() bool { return true }

func TestExtract_DecodesAndStampsSource(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"fees": [{"name": "Application Fee", "category": "application", "amount": 50}]}`,
	}}
	e := NewLLM(provider)

	got, err := e.Extract(context.Background(), Request{
		Category: nav.CategoryFee,
		URL:      "https://x.example/fees",
		Content:  "Application Fee: $50",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(got.Fees) != 1 {
		t.Fatalf("got %d fees, want 1", len(got.Fees))
	}
	fee := got.Fees[0]
	if fee.Name != "Application Fee" || fee.Amount == nil || *fee.Amount != 50 {
		t.Errorf("fee = %+v", fee)
	}
	if fee.SourceURL != "https://x.example/fees" {
		t.Errorf("SourceURL = %q, want request URL", fee.SourceURL)
	}
}

func TestExtract_RetriesOnMalformedJSON(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`not json at all`,
		"```json\n{\"name\": \"Willow Creek\"}\n```",
	}}
	e := NewLLM(provider, WithMaxRetries(2))

	got, err := e.Extract(context.Background(), Request{
		Category: nav.CategoryGeneral,
		URL:      "https://x.example/",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Name != "Willow Creek" {
		t.Errorf("Name = %q, want %q", got.Name, "Willow Creek")
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
	// The retry prompt must carry the parse failure back to the model.
	if len(provider.prompts) < 2 || !strings.Contains(provider.prompts[1], "Previous Attempt Error") {
		t.Error("retry prompt missing previous error context")
	}
}

func TestExtract_FailureWrapsPageAndCategory(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("boom")}}
	e := NewLLM(provider, WithMaxRetries(0))

	_, err := e.Extract(context.Background(), Request{
		Category: nav.CategoryFee,
		URL:      "https://x.example/fees",
	})
	if err == nil {
		t.Fatal("Extract() error = nil, want error")
	}

	var exErr *Error
	if !errors.As(err, &exErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if exErr.URL != "https://x.example/fees" || exErr.Category != nav.CategoryFee {
		t.Errorf("error context = %+v", exErr)
	}
}

func TestExtract_DropsInvalidEntries(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{
			"fees": [{"name": ""}, {"name": "Pet Fee", "category": "pet"}],
			"floor_plans": [{"name": "A1", "beds": -1, "baths": 1}, {"name": "B2", "beds": 2, "baths": 2}],
			"community_amenities": [{"name": "  "}, {"name": "Pool"}]
		}`,
	}}
	e := NewLLM(provider)

	got, err := e.Extract(context.Background(), Request{
		Category: nav.CategoryFloorPlan,
		URL:      "https://x.example/floor-plans",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(got.Fees) != 1 || got.Fees[0].Name != "Pet Fee" {
		t.Errorf("Fees = %+v, want only Pet Fee", got.Fees)
	}
	if len(got.FloorPlans) != 1 || got.FloorPlans[0].Name != "B2" {
		t.Errorf("FloorPlans = %+v, want only B2", got.FloorPlans)
	}
	if len(got.Amenities) != 1 || got.Amenities[0].Name != "Pool" {
		t.Errorf("Amenities = %+v, want only Pool", got.Amenities)
	}
}

func TestBuildPrompt(t *testing.T) {
	snapshot := record.CommunityRecord{Name: "Willow Creek"}
	req := Request{
		Category: nav.CategoryFee,
		URL:      "https://x.example/fees",
		Content:  "Fees are listed below.",
		Snapshot: snapshot,
		Feedback: []string{"no fee has an amount"},
	}

	prompt := BuildPrompt(req, 0)

	for _, want := range []string{
		"fees and charges",
		"Already Known",
		"Willow Creek",
		"Gaps To Fill",
		"no fee has an amount",
		"https://x.example/fees",
		"Fees are listed below.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
