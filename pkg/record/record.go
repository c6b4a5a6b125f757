// Package record defines the community data model built up during an
// extraction run, and the merge rules that combine partial extraction
// results into a single accumulator. The final CommunityRecord is handed
// to the persistence layer as-is; its fields map 1:1 to storage.
package record

import "strings"

// Frequency describes how often a fee is charged.
type Frequency string

const (
	FrequencyOneTime     Frequency = "one-time"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyAnnual      Frequency = "annual"
	FrequencyConditional Frequency = "conditional"
)

// Fee is a single charge associated with a community.
// Two fees are the same entry when their name and canonical category
// match case-insensitively.
type Fee struct {
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Category    string    `json:"category" yaml:"category"`
	Amount      *float64  `json:"amount,omitempty" yaml:"amount,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Refundable  bool      `json:"refundable" yaml:"refundable"`
	Frequency   Frequency `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	SourceURL   string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Conditions  string    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Key returns the identity key used for deduplication.
func (f Fee) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Name)) + "\x00" + CanonicalFeeCategory(f.Category)
}

// Amenity is a named feature of a community or floor plan.
type Amenity struct {
	Name string `json:"name" yaml:"name" validate:"required"`
}

// Key returns the normalized identity of the amenity.
func (a Amenity) Key() string {
	return strings.ToLower(strings.TrimSpace(a.Name))
}

// FloorPlan describes one unit layout. Identity is (name, beds, baths);
// everything else is a fill-if-missing detail field.
type FloorPlan struct {
	Name            string    `json:"name" yaml:"name" validate:"required"`
	Beds            float64   `json:"beds" yaml:"beds" validate:"gte=0"`
	Baths           float64   `json:"baths" yaml:"baths" validate:"gte=0"`
	SqFt            *float64  `json:"sqft,omitempty" yaml:"sqft,omitempty"`
	UnitType        string    `json:"unit_type,omitempty" yaml:"unit_type,omitempty"`
	URL             string    `json:"url,omitempty" yaml:"url,omitempty"`
	MinPrice        *float64  `json:"min_rental_price,omitempty" yaml:"min_rental_price,omitempty"`
	MaxPrice        *float64  `json:"max_rental_price,omitempty" yaml:"max_rental_price,omitempty"`
	SecurityDeposit *float64  `json:"security_deposit,omitempty" yaml:"security_deposit,omitempty"`
	Image           string    `json:"image,omitempty" yaml:"image,omitempty"`
	NumAvailable    *int      `json:"num_available,omitempty" yaml:"num_available,omitempty"`
	Amenities       []Amenity `json:"amenities,omitempty" yaml:"amenities,omitempty"`
}

// Key returns the identity key used for deduplication.
func (p FloorPlan) Key() floorPlanKey {
	return floorPlanKey{
		name:  strings.ToLower(strings.TrimSpace(p.Name)),
		beds:  p.Beds,
		baths: p.Baths,
	}
}

type floorPlanKey struct {
	name        string
	beds, baths float64
}

// Page is a site page worth recording alongside the community data.
// Identity is the URL, falling back to the page name.
type Page struct {
	Name     string `json:"name" yaml:"name"`
	Overview string `json:"overview,omitempty" yaml:"overview,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Key returns the identity key used for deduplication.
func (p Page) Key() string {
	if p.URL != "" {
		return strings.ToLower(strings.TrimSpace(p.URL))
	}
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// CommunityRecord is the accumulator built up over one extraction run.
// Merges only ever add entries or fill empty fields; nothing is removed
// or overwritten once populated.
type CommunityRecord struct {
	Name     string `json:"name" yaml:"name"`
	Overview string `json:"overview" yaml:"overview"`
	URL      string `json:"url" yaml:"url"`

	PetPolicy              string `json:"pet_policy,omitempty" yaml:"pet_policy,omitempty"`
	PetPolicySource        string `json:"pet_policy_source,omitempty" yaml:"pet_policy_source,omitempty"`
	SelfShowings           *bool  `json:"self_showings,omitempty" yaml:"self_showings,omitempty"`
	SelfShowingsSource     string `json:"self_showings_source,omitempty" yaml:"self_showings_source,omitempty"`
	OfficeHours            string `json:"office_hours,omitempty" yaml:"office_hours,omitempty"`
	ResidentPortalProvider string `json:"resident_portal_provider,omitempty" yaml:"resident_portal_provider,omitempty"`

	StreetAddress string `json:"street_address,omitempty" yaml:"street_address,omitempty"`
	City          string `json:"city,omitempty" yaml:"city,omitempty"`
	State         string `json:"state,omitempty" yaml:"state,omitempty"`
	ZipCode       string `json:"zip_code,omitempty" yaml:"zip_code,omitempty"`

	SpecialOffers string `json:"special_offers,omitempty" yaml:"special_offers,omitempty"`

	Fees       []Fee       `json:"fees" yaml:"fees"`
	FloorPlans []FloorPlan `json:"floor_plans" yaml:"floor_plans"`
	Amenities  []Amenity   `json:"community_amenities" yaml:"community_amenities"`
	Pages      []Page      `json:"community_pages" yaml:"community_pages"`
}

// IsEmpty reports whether the record carries no extracted data at all.
func (r CommunityRecord) IsEmpty() bool {
	return r.Name == "" && r.Overview == "" &&
		len(r.Fees) == 0 && len(r.FloorPlans) == 0 &&
		len(r.Amenities) == 0 && len(r.Pages) == 0
}

// Clone returns a deep copy of the record. Extraction capabilities receive
// a snapshot of the accumulator and must not be able to mutate it.
func (r CommunityRecord) Clone() CommunityRecord {
	out := r
	out.SelfShowings = clonePtr(r.SelfShowings)
	out.Fees = make([]Fee, len(r.Fees))
	for i, f := range r.Fees {
		f.Amount = clonePtr(f.Amount)
		out.Fees[i] = f
	}
	out.FloorPlans = make([]FloorPlan, len(r.FloorPlans))
	for i, p := range r.FloorPlans {
		p.SqFt = clonePtr(p.SqFt)
		p.MinPrice = clonePtr(p.MinPrice)
		p.MaxPrice = clonePtr(p.MaxPrice)
		p.SecurityDeposit = clonePtr(p.SecurityDeposit)
		p.NumAvailable = clonePtr(p.NumAvailable)
		p.Amenities = append([]Amenity(nil), p.Amenities...)
		out.FloorPlans[i] = p
	}
	out.Amenities = append([]Amenity(nil), r.Amenities...)
	out.Pages = append([]Page(nil), r.Pages...)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
