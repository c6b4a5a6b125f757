// Package clean reduces raw page HTML to compact text before it is
// handed to an extraction backend. Smaller, structured input means
// cheaper calls and fewer hallucinated fields.
package clean

import "strings"

// Cleaner transforms raw HTML into extraction-ready text.
type Cleaner interface {
	// Clean converts HTML into a compact representation.
	Clean(html string) (string, error)

	// Name returns the cleaner type.
	Name() string
}

// cleanWhitespace collapses runs of blank lines to a single blank line.
func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 1 {
				result = append(result, "")
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
