package orchestrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leasescout/leasescout/internal/extract"
	"github.com/leasescout/leasescout/internal/fetch"
	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/pkg/record"
)

// stubFetcher serves pages from a map and counts fetches per URL.
type stubFetcher struct {
	mu     sync.Mutex
	pages  map[string]fetch.RenderedPage
	errs   map[string]error
	counts map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:  make(map[string]fetch.RenderedPage),
		errs:   make(map[string]error),
		counts: make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ fetch.Options) (fetch.RenderedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[url]++
	if err, ok := f.errs[url]; ok {
		return fetch.RenderedPage{URL: url}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return fetch.RenderedPage{URL: url}, errors.New("no such page")
	}
	return page, nil
}

func (f *stubFetcher) Close() error { return nil }
func (f *stubFetcher) Type() string { return "stub" }

func (f *stubFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[url]
}

// stubExtractor returns partial records keyed by (url, category).
type stubExtractor struct {
	mu       sync.Mutex
	partials map[string]record.CommunityRecord
	requests []extract.Request
}

func key(url string, category nav.Category) string {
	return url + "|" + string(category)
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{partials: make(map[string]record.CommunityRecord)}
}

func (e *stubExtractor) Extract(_ context.Context, req extract.Request) (record.CommunityRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	return e.partials[key(req.URL, req.Category)], nil
}

const (
	seedURL  = "https://willowcreek.example"
	plansURL = "https://willowcreek.example/floor-plans"
	feesURL  = "https://willowcreek.example/fees"
)

func seedPage() fetch.RenderedPage {
	return fetch.RenderedPage{
		URL:   seedURL,
		Title: "Willow Creek Apartments",
		HTML:  "<html><body>Willow Creek</body></html>",
		Text:  "Willow Creek",
		Links: []fetch.Link{
			{URL: plansURL, Text: "Floor Plans"},
			{URL: feesURL, Text: "Fees"},
		},
	}
}

func completeGeneral() record.CommunityRecord {
	hours := "Mon-Fri 9-5"
	return record.CommunityRecord{
		Name:          "Willow Creek",
		Overview:      "Garden-style apartments.",
		StreetAddress: "100 Willow Way",
		City:          "Austin",
		State:         "TX",
		OfficeHours:   hours,
		PetPolicy:     "Pets welcome",
		SpecialOffers: "One month free",
		ResidentPortalProvider: "RentCafe",
		Amenities:              []record.Amenity{{Name: "Pool"}},
	}
}

func completePlans() record.CommunityRecord {
	price := 1500.0
	sqft := 650.0
	return record.CommunityRecord{
		FloorPlans: []record.FloorPlan{
			{Name: "1BR", Beds: 1, Baths: 1, MinPrice: &price, SqFt: &sqft},
		},
	}
}

func completeFees() record.CommunityRecord {
	amount := 50.0
	return record.CommunityRecord{
		Fees: []record.Fee{{Name: "Application Fee", Category: "application", Amount: &amount}},
	}
}

func newTestController(f fetch.Fetcher, e extract.Extractor) *Controller {
	return New(f, e, Config{Concurrency: 2, MaxValidationRounds: 3})
}

func TestRunExtraction_SinglePassSuccess(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans", Text: "plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees", Text: "fees"}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = completeGeneral()
	extractor.partials[key(plansURL, nav.CategoryFloorPlan)] = completePlans()
	extractor.partials[key(feesURL, nav.CategoryFee)] = completeFees()

	result, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	if !result.Report.Passed || result.Report.ForcedAccept {
		t.Errorf("Report = %+v, want clean pass", result.Report)
	}
	if result.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", result.Rounds)
	}
	if result.Record.Name != "Willow Creek" {
		t.Errorf("Record.Name = %q", result.Record.Name)
	}
	if len(result.Record.FloorPlans) != 1 || len(result.Record.Fees) != 1 {
		t.Errorf("Record has %d plans, %d fees, want 1 each",
			len(result.Record.FloorPlans), len(result.Record.Fees))
	}

	// Every page fetched exactly once.
	for _, url := range []string{seedURL, plansURL, feesURL} {
		if got := fetcher.count(url); got != 1 {
			t.Errorf("fetch count for %s = %d, want 1", url, got)
		}
	}

	// The visited pages are recorded on the final record.
	if len(result.Record.Pages) != 3 {
		t.Errorf("Record.Pages = %v, want 3 entries", result.Record.Pages)
	}
}

func TestRunExtraction_BoundedRounds(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	// The extractor only ever finds the name, so validation can never
	// pass and the run must stop at the round cap.
	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = record.CommunityRecord{Name: "Willow Creek"}

	result, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	if result.Rounds != 3 {
		t.Errorf("Rounds = %d, want 3", result.Rounds)
	}
	if result.Report.Passed {
		t.Error("Report.Passed = true, want false")
	}
	if !result.Report.ForcedAccept {
		t.Error("Report.ForcedAccept = false, want true after exhausting retries")
	}
	if result.Record.Name != "Willow Creek" {
		t.Errorf("Record.Name = %q, partial data must survive forced accept", result.Record.Name)
	}
}

func TestRunExtraction_ChallengeOnCandidateSkipsPage(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.errs[plansURL] = fetch.ErrChallengeDetected
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = completeGeneral()
	extractor.partials[key(feesURL, nav.CategoryFee)] = completeFees()
	// Floor plans never arrive because the page is blocked, so the run
	// ends in a forced accept, but the fee data must still be there.

	result, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v, blocked candidate must not fail the run", err)
	}

	if len(result.Record.Fees) != 1 {
		t.Errorf("Record.Fees = %v, want fee data from the unblocked page", result.Record.Fees)
	}
	found := false
	for _, pe := range result.PageErrors {
		if strings.Contains(pe, plansURL) {
			found = true
		}
	}
	if !found {
		t.Errorf("PageErrors = %v, want an entry for the blocked page", result.PageErrors)
	}
}

func TestRunExtraction_SeedFailureFailsRun(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.errs[seedURL] = fetch.ErrChallengeDetected

	_, err := newTestController(fetcher, newStubExtractor()).RunExtraction(context.Background(), seedURL)
	if err == nil {
		t.Fatal("RunExtraction() error = nil, want RunFailedError")
	}

	var runErr *RunFailedError
	if !errors.As(err, &runErr) {
		t.Fatalf("error type = %T, want *RunFailedError", err)
	}
	if !errors.Is(err, fetch.ErrChallengeDetected) {
		t.Error("RunFailedError must wrap the underlying challenge error")
	}
}

func TestRunExtraction_RetryRefetchesAndCarriesFeedback(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = completeGeneral()
	extractor.partials[key(plansURL, nav.CategoryFloorPlan)] = completePlans()
	// Fees come back without amounts, so round one fails validation
	// and a fee-focused retry runs.
	extractor.partials[key(feesURL, nav.CategoryFee)] = record.CommunityRecord{
		Fees: []record.Fee{{Name: "Application Fee"}},
	}

	result, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	if result.Rounds < 2 {
		t.Fatalf("Rounds = %d, want a retry round", result.Rounds)
	}

	// The retry must re-fetch the fee page rather than reuse the
	// round-one render.
	if got := fetcher.count(feesURL); got < 2 {
		t.Errorf("fetch count for fee page = %d, want re-fetch on retry", got)
	}

	// And the retry request must carry validator feedback.
	foundFeedback := false
	for _, req := range extractor.requests {
		if req.URL == feesURL && len(req.Feedback) > 0 {
			foundFeedback = true
		}
	}
	if !foundFeedback {
		t.Error("no fee extraction request carried retry feedback")
	}
}

func TestRunExtraction_MergeAcrossPasses(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	// The general pass sees the 1BR with a price, the floor plan pass
	// sees the same plan with square footage. The final record must
	// hold one plan carrying both.
	price := 1500.0
	sqft := 650.0
	general := completeGeneral()
	general.FloorPlans = []record.FloorPlan{{Name: "1BR", Beds: 1, Baths: 1, MinPrice: &price}}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = general
	extractor.partials[key(plansURL, nav.CategoryFloorPlan)] = record.CommunityRecord{
		FloorPlans: []record.FloorPlan{{Name: "1BR", Beds: 1, Baths: 1, SqFt: &sqft}},
	}
	extractor.partials[key(feesURL, nav.CategoryFee)] = completeFees()

	result, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	if len(result.Record.FloorPlans) != 1 {
		t.Fatalf("FloorPlans = %v, want single merged plan", result.Record.FloorPlans)
	}
	plan := result.Record.FloorPlans[0]
	if plan.MinPrice == nil || *plan.MinPrice != 1500 {
		t.Errorf("merged plan price = %v, want 1500", plan.MinPrice)
	}
	if plan.SqFt == nil || *plan.SqFt != 650 {
		t.Errorf("merged plan sqft = %v, want 650", plan.SqFt)
	}
}

func TestNew_CleanerFallsBackToReadability(t *testing.T) {
	c := newTestController(newStubFetcher(), newStubExtractor())

	name := c.cleaner.Name()
	if !strings.Contains(name, "markdown") || !strings.Contains(name, "readability") {
		t.Errorf("cleaner = %q, want markdown with readability fallback", name)
	}
}

func TestRunExtraction_LaterPhasesSeeGeneralData(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = completeGeneral()
	extractor.partials[key(plansURL, nav.CategoryFloorPlan)] = completePlans()
	extractor.partials[key(feesURL, nav.CategoryFee)] = completeFees()

	if _, err := newTestController(fetcher, extractor).RunExtraction(context.Background(), seedURL); err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	// The fee pass runs in a later phase of the same round, so its
	// snapshot must already hold what the general pass found.
	for _, req := range extractor.requests {
		if req.Category != nav.CategoryFee {
			continue
		}
		if req.Snapshot.Name != "Willow Creek" {
			t.Errorf("fee pass snapshot name = %q, want data from the general pass", req.Snapshot.Name)
		}
		if len(req.Snapshot.FloorPlans) != 1 {
			t.Errorf("fee pass snapshot has %d floor plans, want 1 from the earlier phase", len(req.Snapshot.FloorPlans))
		}
	}
}

func TestRunExtraction_RetryVisitsDeferredCandidatesFirst(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.pages[seedURL] = seedPage()
	fetcher.pages[plansURL] = fetch.RenderedPage{URL: plansURL, Title: "Floor Plans"}
	fetcher.pages[feesURL] = fetch.RenderedPage{URL: feesURL, Title: "Fees"}

	extractor := newStubExtractor()
	extractor.partials[key(seedURL, nav.CategoryGeneral)] = completeGeneral()
	extractor.partials[key(plansURL, nav.CategoryFloorPlan)] = completePlans()
	extractor.partials[key(feesURL, nav.CategoryFee)] = completeFees()

	// Room for one candidate only, so the fee page is deferred past
	// round one. The retry must visit it instead of re-fetching pages
	// already seen.
	controller := New(fetcher, extractor, Config{
		Concurrency:         2,
		MaxValidationRounds: 3,
		MaxCandidates:       1,
	})

	result, err := controller.RunExtraction(context.Background(), seedURL)
	if err != nil {
		t.Fatalf("RunExtraction() error = %v", err)
	}

	if result.Rounds != 2 {
		t.Errorf("Rounds = %d, want 2", result.Rounds)
	}
	if !result.Report.Passed {
		t.Errorf("Report = %+v, want pass once the deferred page is visited", result.Report)
	}
	if len(result.Record.Fees) != 1 {
		t.Errorf("Record.Fees = %v, want the fee from the deferred page", result.Record.Fees)
	}
	if got := fetcher.count(feesURL); got != 1 {
		t.Errorf("fetch count for deferred page = %d, want 1", got)
	}
	// No forced re-fetch of pages from round one.
	if got := fetcher.count(seedURL); got != 1 {
		t.Errorf("fetch count for seed = %d, want 1", got)
	}
}

func TestRecordScore_FlagsRegression(t *testing.T) {
	state := newRunState(seedURL)

	if state.recordScore(40) {
		t.Error("first score flagged as regression")
	}
	if state.recordScore(70) {
		t.Error("improvement flagged as regression")
	}
	if !state.recordScore(55) {
		t.Error("drop from 70 to 55 not flagged as regression")
	}
}
