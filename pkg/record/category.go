package record

import "strings"

type feeCategoryAlias struct {
	match     string
	canonical string
}

// feeCategoryAliases maps the spellings sites use for a fee category to one
// canonical form, so "Admin Fee" and "administrative fee" dedupe to the same
// entry. Order matters: the first matching alias wins, so more specific
// spellings come before generic ones.
var feeCategoryAliases = []feeCategoryAlias{
	{"security deposit", "deposit"},
	{"resident benefit", "membership"},
	{"benefits package", "membership"},
	{"administrative", "administration"},
	{"administration", "administration"},
	{"admin", "administration"},
	{"application", "application"},
	{"apply", "application"},
	{"app fee", "application"},
	{"pet", "pet"},
	{"animal", "pet"},
	{"amenit", "amenity"},
	{"membership", "membership"},
	{"deposit", "deposit"},
	{"parking", "parking"},
	{"garage", "parking"},
	{"utilit", "utility"},
	{"trash", "utility"},
	{"storage", "storage"},
	{"move-in", "move-in"},
	{"move in", "move-in"},
	{"lease", "lease"},
}

// CanonicalFeeCategory normalizes a free-text fee category to its canonical
// grouping key. Unknown categories are lowercased and trimmed but otherwise
// kept, so novel categories still group with themselves.
func CanonicalFeeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return ""
	}
	for _, alias := range feeCategoryAliases {
		if strings.Contains(c, alias.match) {
			return alias.canonical
		}
	}
	return c
}
