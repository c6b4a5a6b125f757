package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Attributes that single-page-app frameworks use to carry navigation
// targets on non-anchor elements.
var routeAttrs = []string{"data-url", "data-href", "data-route", "data-target", "data-link", "data-path"}

var inlineRoutePattern = regexp.MustCompile(`["'](/[a-zA-Z0-9_\-/]{2,})["']`)

// parsePage extracts title, text, links, clickables and inline script
// bodies from the fetched HTML. It mutates page in place.
func parsePage(page *RenderedPage) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return err
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	// Collect inline scripts before stripping them, so route mining
	// can still see SPA navigation tables.
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		body := strings.TrimSpace(s.Text())
		if body != "" {
			page.ScriptSrcs = append(page.ScriptSrcs, body)
		}
	})

	// Remove non-content elements before extracting text.
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var textParts []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text != "" {
			textParts = append(textParts, text)
		}
	})
	page.Text = strings.Join(textParts, "\n")

	baseURL, _ := url.Parse(page.URL)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved := resolveURL(baseURL, href)
		if resolved == "" {
			return
		}

		page.Links = append(page.Links, Link{
			URL:  resolved,
			Text: cleanText(s.Text()),
		})
	})

	doc.Find("button, [role=button], [onclick], [data-url], [data-href], [data-route], [data-target], [data-link], [data-path]").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "a" {
			return
		}

		click := Clickable{Label: cleanText(s.Text())}
		if click.Label == "" {
			click.Label = cleanText(s.AttrOr("aria-label", ""))
		}

		for _, attr := range routeAttrs {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				click.Path = strings.TrimSpace(v)
				break
			}
		}

		if click.Label == "" && click.Path == "" {
			return
		}
		page.Clickables = append(page.Clickables, click)
	})

	return nil
}

// resolveURL resolves href against base and returns an absolute URL,
// or "" when the href is not a navigable http(s) target.
func resolveURL(base *url.URL, href string) string {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	linkURL, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if !linkURL.IsAbs() {
		if base == nil {
			return ""
		}
		linkURL = base.ResolveReference(linkURL)
	}
	if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
		return ""
	}
	linkURL.Fragment = ""
	return linkURL.String()
}

// MineScriptRoutes scans inline script bodies for string literals that
// look like site-relative paths. SPA sites often keep their navigation
// table in a bundled script rather than anchor tags.
func MineScriptRoutes(page RenderedPage) []string {
	seen := make(map[string]struct{})
	var routes []string
	for _, src := range page.ScriptSrcs {
		for _, m := range inlineRoutePattern.FindAllStringSubmatch(src, -1) {
			path := m[1]
			if looksLikeAsset(path) {
				continue
			}
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			routes = append(routes, path)
		}
	}
	return routes
}

var assetSuffixes = []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".woff", ".woff2", ".ttf", ".map", ".json"}

func looksLikeAsset(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
