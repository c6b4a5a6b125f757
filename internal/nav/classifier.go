// Package nav finds and classifies candidate navigation targets on a
// rental community site. It combines three discovery strategies so it
// works on traditional server-rendered sites as well as SPAs whose
// navigation lives in buttons or script bundles.
package nav

import (
	"net/url"
	"strings"

	"github.com/leasescout/leasescout/internal/fetch"
	"github.com/leasescout/leasescout/internal/logger"
)

// Discovery method names, recorded on each candidate for diagnostics.
const (
	MethodAnchor    = "anchor"
	MethodClickable = "clickable"
	MethodScript    = "script"
)

// Candidate is a URL worth fetching, tagged with the content category
// its path and label suggest.
type Candidate struct {
	URL      string
	Category Category
	Label    string
	Method   string
}

// Classifier turns a rendered page into a ranked candidate list.
type Classifier struct{}

// NewClassifier creates a navigation classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Candidates extracts navigation candidates from a rendered page.
// Only same-site URLs are kept, duplicates are removed, and results
// are ordered floor plan first, then fee, then general.
func (c *Classifier) Candidates(page fetch.RenderedPage) []Candidate {
	base, err := url.Parse(page.URL)
	if err != nil {
		logger.Warn("navigation classify skipped, bad page url", "url", page.URL, "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	var out []Candidate

	add := func(rawURL, label, method string) {
		if skippableURL(rawURL) || skippableLabel(label) {
			return
		}
		if !sameSite(base, rawURL) {
			return
		}
		normalized := normalizeURL(rawURL)
		if normalized == "" {
			return
		}
		key := dedupKey(normalized)
		if key == dedupKey(normalizeURL(page.URL)) {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{
			URL:      normalized,
			Category: Classify(normalized, label),
			Label:    label,
			Method:   method,
		})
	}

	// Strategy 1: anchor links.
	for _, link := range page.Links {
		add(link.URL, link.Text, MethodAnchor)
	}

	// Strategy 2: button-like elements. Prefer an explicit route
	// attribute, fall back to the label dictionary, then slugify.
	for _, click := range page.Clickables {
		path := click.Path
		if path == "" {
			if mapped, ok := labelPaths[strings.ToLower(strings.TrimSpace(click.Label))]; ok {
				path = mapped
			} else {
				path = slugify(click.Label)
			}
		}
		if path == "" {
			continue
		}
		add(resolveAgainst(base, path), click.Label, MethodClickable)
	}

	// Strategy 3: route-like string literals mined from inline scripts.
	for _, route := range fetch.MineScriptRoutes(page) {
		add(resolveAgainst(base, route), "", MethodScript)
	}

	ordered := orderByCategory(out)
	logger.Debug("navigation candidates classified",
		"page", page.URL,
		"total", len(ordered))
	return ordered
}

// orderByCategory sorts candidates floor plan, fee, general while
// preserving discovery order within each category.
func orderByCategory(candidates []Candidate) []Candidate {
	ordered := make([]Candidate, 0, len(candidates))
	for _, want := range []Category{CategoryFloorPlan, CategoryFee, CategoryGeneral} {
		for _, c := range candidates {
			if c.Category == want {
				ordered = append(ordered, c)
			}
		}
	}
	return ordered
}

// sameSite reports whether rawURL points at the same site as base,
// treating www. as equivalent to the bare host.
func sameSite(base *url.URL, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return true
	}
	return stripWWW(u.Hostname()) == stripWWW(base.Hostname())
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// resolveAgainst resolves a site-relative path against the page base.
func resolveAgainst(base *url.URL, path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// dedupKey collapses the www. host variant so the same path on the
// bare and prefixed host counts as one page.
func dedupKey(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	return stripWWW(u.Hostname()) + u.Path + "?" + u.RawQuery
}

// normalizeURL strips fragments and trailing slashes so the same page
// is never fetched twice under cosmetic variants.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
