// Package validate scores an accumulated community record and decides
// whether an extraction run produced enough data to accept. The rubric
// distinguishes critical facts, which a run must have, from
// nice-to-have detail that only affects the score.
package validate

import (
	"fmt"
	"strings"

	"github.com/leasescout/leasescout/internal/logger"
	"github.com/leasescout/leasescout/internal/nav"
	"github.com/leasescout/leasescout/pkg/record"
)

// Recommendation directs a retry pass at the category most likely to
// close a specific gap.
type Recommendation struct {
	Category nav.Category
	Hint     string
}

// Report is the outcome of validating an accumulator.
type Report struct {
	// Score is 0-100. Critical facts carry most of the weight.
	Score int

	// Passed is true when every applicable critical fact is present.
	Passed bool

	// CriticalMissing names the critical facts that are absent.
	CriticalMissing []string

	// IncompleteFields names nice-to-have gaps. These lower the score
	// but never fail validation on their own.
	IncompleteFields []string

	// Recommendations map gaps to the page category a retry should
	// focus on.
	Recommendations []Recommendation

	// Quality is a score-band phrase ("excellent" through "poor").
	Quality string

	// QualityIssues lists run-level anomalies observed by the caller,
	// such as a score regression between rounds.
	QualityIssues []string

	// ScoreRegression is set by the caller when this round scored
	// lower than the previous one.
	ScoreRegression bool

	// ForcedAccept is set by the caller when the retry budget ran out
	// and the record was accepted despite a failing report.
	ForcedAccept bool

	// Summary is a one-line human description of the outcome.
	Summary string
}

// Options tunes a validation pass.
type Options struct {
	// ContextFields lists facts already known from outside the run
	// (e.g. the address came with the request). A fact listed here is
	// not required from extraction.
	ContextFields []string
}

// Validator scores community records.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

type criticalCheck struct {
	name     string
	category nav.Category
	hint     string
	present  func(record.CommunityRecord) bool
}

var criticalChecks = []criticalCheck{
	{
		name:     "name",
		category: nav.CategoryGeneral,
		hint:     "the community's name",
		present:  func(r record.CommunityRecord) bool { return strings.TrimSpace(r.Name) != "" },
	},
	{
		name:     "overview",
		category: nav.CategoryGeneral,
		hint:     "a description or overview of the community",
		present:  func(r record.CommunityRecord) bool { return strings.TrimSpace(r.Overview) != "" },
	},
	{
		name:     "address",
		category: nav.CategoryGeneral,
		hint:     "the community's street address, city and state",
		present: func(r record.CommunityRecord) bool {
			return strings.TrimSpace(r.StreetAddress) != "" &&
				strings.TrimSpace(r.City) != "" &&
				strings.TrimSpace(r.State) != ""
		},
	},
	{
		name:     "floor_plans",
		category: nav.CategoryFloorPlan,
		hint:     "at least one floor plan with name, beds and baths",
		present: func(r record.CommunityRecord) bool {
			for _, p := range r.FloorPlans {
				// Zero beds is a studio; a plan with zero baths is a
				// unit nobody described.
				if strings.TrimSpace(p.Name) != "" && p.Baths > 0 {
					return true
				}
			}
			return false
		},
	},
	{
		name:     "fees",
		category: nav.CategoryFee,
		hint:     "at least one fee with a dollar amount",
		present: func(r record.CommunityRecord) bool {
			for _, f := range r.Fees {
				if f.Amount != nil {
					return true
				}
			}
			return false
		},
	},
	{
		name:     "contact",
		category: nav.CategoryGeneral,
		hint:     "office hours or whether self showings are offered",
		present: func(r record.CommunityRecord) bool {
			return strings.TrimSpace(r.OfficeHours) != "" || r.SelfShowings != nil
		},
	},
}

type niceCheck struct {
	name    string
	present func(record.CommunityRecord) bool
}

var niceChecks = []niceCheck{
	{"pet_policy", func(r record.CommunityRecord) bool { return strings.TrimSpace(r.PetPolicy) != "" }},
	{"special_offers", func(r record.CommunityRecord) bool { return strings.TrimSpace(r.SpecialOffers) != "" }},
	{"community_amenities", func(r record.CommunityRecord) bool { return len(r.Amenities) > 0 }},
	{"resident_portal_provider", func(r record.CommunityRecord) bool { return strings.TrimSpace(r.ResidentPortalProvider) != "" }},
	{"floor_plan_pricing", func(r record.CommunityRecord) bool {
		for _, p := range r.FloorPlans {
			if p.MinPrice != nil || p.MaxPrice != nil {
				return true
			}
		}
		return false
	}},
	{"floor_plan_sqft", func(r record.CommunityRecord) bool {
		for _, p := range r.FloorPlans {
			if p.SqFt != nil {
				return true
			}
		}
		return false
	}},
}

// Critical facts carry this share of the total score.
const criticalWeight = 70

// qualityPhrase maps a score to a band. Bands are coarse on purpose;
// the numeric score stays authoritative.
func qualityPhrase(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "fair"
	default:
		return "poor"
	}
}

// Validate scores the record against the rubric.
func (v *Validator) Validate(r record.CommunityRecord, opts Options) Report {
	skip := make(map[string]bool, len(opts.ContextFields))
	for _, f := range opts.ContextFields {
		skip[strings.ToLower(strings.TrimSpace(f))] = true
	}

	var applicable []criticalCheck
	for _, check := range criticalChecks {
		if skip[check.name] {
			continue
		}
		applicable = append(applicable, check)
	}

	report := Report{}
	criticalPresent := 0
	for _, check := range applicable {
		if check.present(r) {
			criticalPresent++
			continue
		}
		report.CriticalMissing = append(report.CriticalMissing, check.name)
		report.Recommendations = append(report.Recommendations, Recommendation{
			Category: check.category,
			Hint:     check.hint,
		})
	}

	nicePresent := 0
	for _, check := range niceChecks {
		if check.present(r) {
			nicePresent++
			continue
		}
		report.IncompleteFields = append(report.IncompleteFields, check.name)
	}

	if len(applicable) > 0 {
		report.Score += criticalWeight * criticalPresent / len(applicable)
	} else {
		report.Score += criticalWeight
	}
	if len(niceChecks) > 0 {
		report.Score += (100 - criticalWeight) * nicePresent / len(niceChecks)
	}

	report.Passed = len(report.CriticalMissing) == 0
	report.Quality = qualityPhrase(report.Score)

	if report.Passed {
		report.Summary = fmt.Sprintf("record accepted with score %d", report.Score)
	} else {
		report.Summary = fmt.Sprintf("record incomplete (score %d), missing: %s",
			report.Score, strings.Join(report.CriticalMissing, ", "))
	}

	logger.Debug("validation complete",
		"score", report.Score,
		"passed", report.Passed,
		"critical_missing", len(report.CriticalMissing),
		"incomplete", len(report.IncompleteFields))
	return report
}
