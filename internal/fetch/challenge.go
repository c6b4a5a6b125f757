package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Interstitial page titles served by Cloudflare and similar services
// while the browser check runs.
var challengeTitles = []string{
	"just a moment...",
	"checking your browser",
	"attention required",
	"access denied",
}

var challengeKeywords = []string{
	"verify you are human",
	"verifying you are human",
	"complete the security check",
	"enable javascript and cookies to continue",
	"checking if the site connection is secure",
	"ddos protection by",
}

// detectChallenge reports whether the page is an anti-bot interstitial
// rather than real site content.
func detectChallenge(page RenderedPage) bool {
	title := strings.ToLower(page.Title)
	for _, t := range challengeTitles {
		if strings.Contains(title, t) {
			return true
		}
	}

	body := strings.ToLower(page.Text)
	// Keyword checks only make sense on near-empty pages; a real
	// rental site may legitimately mention security.
	if len(body) < 4096 {
		for _, kw := range challengeKeywords {
			if strings.Contains(body, kw) {
				return true
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return false
	}

	found := false
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := strings.ToLower(s.AttrOr("src", ""))
		if strings.Contains(src, "recaptcha") || strings.Contains(src, "hcaptcha") || strings.Contains(src, "turnstile") {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}

	return doc.Find("#challenge-form, #cf-challenge-running, .cf-browser-verification").Length() > 0
}
