package nav

import "strings"

// Category labels a candidate URL by the kind of content it likely holds.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryFloorPlan Category = "floor_plan"
	CategoryFee       Category = "fee"
)

// Keywords matched against URL paths and link labels. Floor plan
// keywords win over fee keywords when both match, since floor plan
// pages often also mention pricing.
var floorPlanKeywords = []string{
	"floorplan", "floor-plan", "floor_plan", "floor plan",
	"units", "layouts", "apartment", "availability",
}

var feeKeywords = []string{
	"pricing", "fees", "fee", "apply", "application", "lease", "rent",
}

// URL prefixes and path fragments that never lead to extractable content.
var skipURLFragments = []string{
	"login", "sign-in", "signin", "privacy", "terms", "cookies",
	"sitemap", "careers", "accessibility",
}

// Link labels that signal chrome rather than navigation.
var skipLabels = []string{
	"share", "facebook", "twitter", "instagram", "linkedin", "youtube",
	"sign in", "log in", "toggle", "menu", "close", "skip to",
	"back to top",
}

// labelPaths maps common navigation labels to conventional site paths.
// Used for clickable elements that carry no route attribute.
var labelPaths = map[string]string{
	"floor plans":  "/floor-plans",
	"floorplans":   "/floorplans",
	"availability": "/availability",
	"amenities":    "/amenities",
	"pricing":      "/pricing",
	"fees":         "/fees",
	"apply":        "/apply",
	"apply now":    "/apply",
	"contact":      "/contact",
	"contact us":   "/contact",
	"residents":    "/residents",
	"gallery":      "/gallery",
}

// Classify returns the category suggested by a URL path and its label,
// or CategoryGeneral when neither matches.
func Classify(rawURL, label string) Category {
	subject := strings.ToLower(rawURL + " " + label)
	for _, kw := range floorPlanKeywords {
		if strings.Contains(subject, kw) {
			return CategoryFloorPlan
		}
	}
	for _, kw := range feeKeywords {
		if strings.Contains(subject, kw) {
			return CategoryFee
		}
	}
	return CategoryGeneral
}

// skippableURL reports whether a URL path points at site chrome.
func skippableURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, frag := range skipURLFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// skippableLabel reports whether a link label is chrome rather than
// content navigation.
func skippableLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, s := range skipLabels {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// slugify converts a navigation label into a conventional URL path
// segment: "Floor Plans" becomes "/floor-plans".
func slugify(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return ""
	}
	return "/" + slug
}
