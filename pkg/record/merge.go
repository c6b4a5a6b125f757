package record

import "strings"

// Merge combines a partial extraction result into the accumulator and
// returns the result. The operation is deterministic and idempotent:
// entries are matched by identity key, new keys are appended in the order
// the partial presents them, and on an existing entry only empty fields
// are filled ("first writer wins" per field). Nothing is ever removed or
// overwritten, so collection sizes and scalar populated-ness grow
// monotonically across any sequence of merges.
//
// Merge is not safe for concurrent use; callers serialize access to the
// accumulator.
func Merge(acc, partial CommunityRecord) CommunityRecord {
	out := acc.Clone()

	mergeScalars(&out, partial)
	out.Fees = mergeFees(out.Fees, partial.Fees)
	out.FloorPlans = mergeFloorPlans(out.FloorPlans, partial.FloorPlans)
	out.Amenities = mergeAmenities(out.Amenities, partial.Amenities)
	out.Pages = mergePages(out.Pages, partial.Pages)

	return out
}

func mergeScalars(acc *CommunityRecord, p CommunityRecord) {
	fillString(&acc.Name, p.Name)
	fillString(&acc.Overview, p.Overview)
	fillString(&acc.URL, p.URL)
	fillString(&acc.PetPolicy, p.PetPolicy)
	fillString(&acc.PetPolicySource, p.PetPolicySource)
	fillString(&acc.SelfShowingsSource, p.SelfShowingsSource)
	fillString(&acc.OfficeHours, p.OfficeHours)
	fillString(&acc.ResidentPortalProvider, p.ResidentPortalProvider)
	fillString(&acc.StreetAddress, p.StreetAddress)
	fillString(&acc.City, p.City)
	fillString(&acc.State, p.State)
	fillString(&acc.ZipCode, p.ZipCode)
	fillString(&acc.SpecialOffers, p.SpecialOffers)
	if acc.SelfShowings == nil && p.SelfShowings != nil {
		acc.SelfShowings = clonePtr(p.SelfShowings)
	}
}

func mergeFees(existing, incoming []Fee) []Fee {
	index := make(map[string]int, len(existing))
	for i, f := range existing {
		index[f.Key()] = i
	}
	for _, in := range incoming {
		if strings.TrimSpace(in.Name) == "" {
			continue
		}
		i, ok := index[in.Key()]
		if !ok {
			in.Amount = clonePtr(in.Amount)
			index[in.Key()] = len(existing)
			existing = append(existing, in)
			continue
		}
		cur := &existing[i]
		if cur.Amount == nil && in.Amount != nil {
			cur.Amount = clonePtr(in.Amount)
		}
		fillString(&cur.Description, in.Description)
		fillString(&cur.SourceURL, in.SourceURL)
		fillString(&cur.Conditions, in.Conditions)
		if cur.Frequency == "" {
			cur.Frequency = in.Frequency
		}
	}
	return existing
}

func mergeFloorPlans(existing, incoming []FloorPlan) []FloorPlan {
	index := make(map[floorPlanKey]int, len(existing))
	for i, p := range existing {
		index[p.Key()] = i
	}
	for _, in := range incoming {
		if strings.TrimSpace(in.Name) == "" {
			continue
		}
		i, ok := index[in.Key()]
		if !ok {
			in.SqFt = clonePtr(in.SqFt)
			in.MinPrice = clonePtr(in.MinPrice)
			in.MaxPrice = clonePtr(in.MaxPrice)
			in.SecurityDeposit = clonePtr(in.SecurityDeposit)
			in.NumAvailable = clonePtr(in.NumAvailable)
			in.Amenities = mergeAmenities(nil, in.Amenities)
			index[in.Key()] = len(existing)
			existing = append(existing, in)
			continue
		}
		cur := &existing[i]
		if cur.SqFt == nil && in.SqFt != nil {
			cur.SqFt = clonePtr(in.SqFt)
		}
		if cur.MinPrice == nil && in.MinPrice != nil {
			cur.MinPrice = clonePtr(in.MinPrice)
		}
		if cur.MaxPrice == nil && in.MaxPrice != nil {
			cur.MaxPrice = clonePtr(in.MaxPrice)
		}
		if cur.SecurityDeposit == nil && in.SecurityDeposit != nil {
			cur.SecurityDeposit = clonePtr(in.SecurityDeposit)
		}
		if cur.NumAvailable == nil && in.NumAvailable != nil {
			cur.NumAvailable = clonePtr(in.NumAvailable)
		}
		fillString(&cur.UnitType, in.UnitType)
		fillString(&cur.URL, in.URL)
		fillString(&cur.Image, in.Image)
		cur.Amenities = mergeAmenities(cur.Amenities, in.Amenities)
	}
	return existing
}

func mergeAmenities(existing, incoming []Amenity) []Amenity {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.Key()] = true
	}
	for _, in := range incoming {
		if strings.TrimSpace(in.Name) == "" {
			continue
		}
		if seen[in.Key()] {
			continue
		}
		seen[in.Key()] = true
		existing = append(existing, in)
	}
	return existing
}

func mergePages(existing, incoming []Page) []Page {
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[p.Key()] = i
	}
	for _, in := range incoming {
		if in.Key() == "" {
			continue
		}
		i, ok := index[in.Key()]
		if !ok {
			index[in.Key()] = len(existing)
			existing = append(existing, in)
			continue
		}
		cur := &existing[i]
		fillString(&cur.Name, in.Name)
		fillString(&cur.Overview, in.Overview)
		fillString(&cur.URL, in.URL)
	}
	return existing
}

// fillString sets dst only when it is currently empty and src is not.
func fillString(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
		*dst = src
	}
}
