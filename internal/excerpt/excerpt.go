// Package excerpt derives bounded content previews for notes.
package excerpt

import "strings"

const (
	maxLen   = 200
	ellipsis = "…"
)

// Generate truncates content to at most 200 characters plus an ellipsis,
// breaking on a word boundary when one exists near the cut point. Content
// that already fits is returned unchanged.
func Generate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}

	cut := runes[:maxLen]
	// Prefer the last space inside the window so words are not split.
	// A very long unbroken token falls back to a hard cut. The boundary
	// search works in runes so the halfway threshold holds for multibyte
	// content too.
	last := -1
	for i, r := range cut {
		if r == ' ' {
			last = i
		}
	}
	if last > maxLen/2 {
		cut = cut[:last]
	}
	return strings.TrimRight(string(cut), " \t\n") + ellipsis
}
