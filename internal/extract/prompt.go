package extract

import (
	"encoding/json"
	"strings"

	"github.com/leasescout/leasescout/internal/logger"
	"github.com/leasescout/leasescout/internal/nav"
)

const systemPrompt = `You are a data extraction assistant for rental community websites. Your task is to extract structured data from webpage content.

Rules:
1. Extract only data that is actually present in the content; never invent values
2. Return valid JSON matching the exact schema structure
3. If a field cannot be found, omit it or use null
4. For prices and fees, extract the numeric value only (no currency symbols)
5. Quote the supporting sentence in *_source fields when the schema asks for one
6. Beds and baths are numbers; a studio is 0 beds`

// Focus instructions appended per category so a pass spends its
// attention on the page type it was dispatched for.
var categoryFocus = map[nav.Category]string{
	nav.CategoryGeneral: `Focus on community-level facts: community name, overview, street address, city, state, zip code, pet policy, self showings, office hours, resident portal provider, special offers, and community amenities.`,
	nav.CategoryFloorPlan: `Focus on floor plans: every unit layout with its name, beds, baths, square footage, rental price range, security deposit, availability count, and per-plan amenities. Also record any fees mentioned alongside the plans.`,
	nav.CategoryFee: `Focus on fees and charges: application fees, administration fees, deposits, pet fees, amenity fees, utilities and any other charges, each with its amount, frequency, refundability and conditions.`,
}

// BuildPrompt assembles the user prompt for one extraction pass.
func BuildPrompt(req Request, maxContentBytes int) string {
	var b strings.Builder

	b.WriteString("Extract structured rental community data from the following webpage content.\n\n")

	if focus, ok := categoryFocus[req.Category]; ok {
		b.WriteString(focus)
		b.WriteString("\n")
	}

	if !req.Snapshot.IsEmpty() {
		if known, err := json.Marshal(req.Snapshot); err == nil {
			b.WriteString("\n## Already Known\n")
			b.WriteString("The following data was already extracted from other pages. Do not repeat it unless this page adds detail to an existing entry:\n")
			b.Write(known)
			b.WriteString("\n")
		}
	}

	if len(req.Feedback) > 0 {
		b.WriteString("\n## Gaps To Fill\n")
		b.WriteString("A review of the extracted data found these gaps. Look specifically for:\n")
		for _, f := range req.Feedback {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Webpage Content\n")
	b.WriteString("Source URL: ")
	b.WriteString(req.URL)
	b.WriteString("\n```\n")
	b.WriteString(truncateContent(req.Content, maxContentBytes))
	b.WriteString("\n```\n")

	return b.String()
}

// SystemPrompt returns the system prompt for extraction.
func SystemPrompt() string {
	return systemPrompt
}

// truncateContent limits content size to avoid blowing token limits.
// maxLen of 0 means no limit.
func truncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	logger.Warn("page content truncated for extraction",
		"original_bytes", len(content),
		"max_bytes", maxLen)
	return content[:maxLen] + "\n\n[Content truncated due to length...]"
}

// feeSchema, floorPlanSchema etc. describe the record types in JSON
// schema form for providers with native structured output.
var feeSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"category":    map[string]any{"type": "string", "description": "administration, deposit, pet, amenity, utility, application or other"},
			"amount":      map[string]any{"type": []string{"number", "null"}},
			"description": map[string]any{"type": "string"},
			"refundable":  map[string]any{"type": "boolean"},
			"frequency":   map[string]any{"type": "string", "enum": []string{"one-time", "monthly", "annual", "conditional"}},
			"conditions":  map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	},
}

var floorPlanSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":             map[string]any{"type": "string"},
			"beds":             map[string]any{"type": "number"},
			"baths":            map[string]any{"type": "number"},
			"sqft":             map[string]any{"type": []string{"number", "null"}},
			"unit_type":        map[string]any{"type": "string"},
			"url":              map[string]any{"type": "string"},
			"min_rental_price": map[string]any{"type": []string{"number", "null"}},
			"max_rental_price": map[string]any{"type": []string{"number", "null"}},
			"security_deposit": map[string]any{"type": []string{"number", "null"}},
			"num_available":    map[string]any{"type": []string{"integer", "null"}},
			"amenities":        amenitySchema,
		},
		"required": []any{"name", "beds", "baths"},
	},
}

var amenitySchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	},
}

// Schema returns the JSON schema for a category's extraction output.
// Every category shares the record envelope; the per-category schemas
// just narrow which sections the model is asked to fill.
func Schema(category nav.Category) map[string]any {
	properties := map[string]any{}

	switch category {
	case nav.CategoryFloorPlan:
		properties["floor_plans"] = floorPlanSchema
		properties["fees"] = feeSchema
	case nav.CategoryFee:
		properties["fees"] = feeSchema
	default:
		properties["name"] = map[string]any{"type": "string"}
		properties["overview"] = map[string]any{"type": "string"}
		properties["street_address"] = map[string]any{"type": "string"}
		properties["city"] = map[string]any{"type": "string"}
		properties["state"] = map[string]any{"type": "string"}
		properties["zip_code"] = map[string]any{"type": "string"}
		properties["pet_policy"] = map[string]any{"type": "string"}
		properties["pet_policy_source"] = map[string]any{"type": "string", "description": "verbatim sentence the pet policy came from"}
		properties["self_showings"] = map[string]any{"type": []string{"boolean", "null"}}
		properties["self_showings_source"] = map[string]any{"type": "string"}
		properties["office_hours"] = map[string]any{"type": "string"}
		properties["resident_portal_provider"] = map[string]any{"type": "string"}
		properties["special_offers"] = map[string]any{"type": "string"}
		properties["community_amenities"] = amenitySchema
		properties["fees"] = feeSchema
		properties["floor_plans"] = floorPlanSchema
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}
