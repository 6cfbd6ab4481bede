// Package search implements keyword relevance scoring over notes.
//
// Scoring is case-insensitive substring matching. The "semantic" mode is a
// deliberate stub that adds a flat bonus; it performs no embedding lookup
// and exists for wire compatibility with clients that select it.
package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/raido/internal/models"
)

// Mode selects the scoring strategy.
type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"

	// MaxLimit bounds the number of results a single query may return.
	MaxLimit = 100

	semanticBonus = 0.1

	snippetBefore = 30
	snippetAfter  = 160
)

// Score computes the relevance of a note for a query. A zero score means
// no field matched.
func Score(n models.Note, query string, mode Mode) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}

	title := strings.ToLower(n.Title)
	content := strings.ToLower(n.Content)

	var score float64
	if strings.Contains(title, q) {
		score += 0.6
		if title == q {
			score += 0.2
		}
	}
	if occ := strings.Count(content, q); occ > 0 {
		score += 0.3
		bonus := 0.05 * float64(occ)
		if bonus > 0.2 {
			bonus = 0.2
		}
		score += bonus
	}
	tagHit, tagExact := false, false
	for _, tag := range n.Tags {
		lt := strings.ToLower(tag)
		if strings.Contains(lt, q) {
			tagHit = true
		}
		if lt == q {
			tagExact = true
		}
	}
	if tagHit {
		score += 0.2
	}
	if tagExact {
		score += 0.1
	}

	if score > 0 && mode == ModeSemantic {
		score += semanticBonus
	}
	return score
}

// Snippet returns the region of content surrounding the first
// case-insensitive occurrence of query, padded ~30 bytes before and ~160
// after, widened to rune boundaries. When the content itself has no match
// the note's excerpt is returned instead.
func Snippet(n models.Note, query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return n.Excerpt
	}
	// Match against the original content, not a lowered copy: lowering can
	// change byte lengths (e.g. İ), which would misalign the indices.
	idx, matchLen := foldIndex(n.Content, q)
	if idx < 0 {
		return n.Excerpt
	}

	start := idx - snippetBefore
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(n.Content[start]) {
		start--
	}
	end := idx + matchLen + snippetAfter
	if end > len(n.Content) {
		end = len(n.Content)
	}
	for end < len(n.Content) && !utf8.RuneStart(n.Content[end]) {
		end++
	}
	return n.Content[start:end]
}

// foldIndex finds the first case-insensitive occurrence of q in s and
// returns its byte offset and byte length within s, or (-1, 0).
func foldIndex(s, q string) (int, int) {
	for i := 0; i < len(s); {
		if n, ok := foldPrefixLen(s[i:], q); ok {
			return i, n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, 0
}

// foldPrefixLen reports whether s starts with q under simple case folding
// and, if so, how many bytes of s the match covers.
func foldPrefixLen(s, q string) (int, bool) {
	n := 0
	for _, qr := range q {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if unicode.ToLower(sr) != unicode.ToLower(qr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

// Rank scores candidates, drops non-matches, orders by score descending
// with updatedAt descending as tiebreak, and truncates to limit.
func Rank(candidates []models.Note, query string, mode Mode, limit int) []models.SearchResult {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, n := range candidates {
		s := Score(n, query, mode)
		if s <= 0 {
			continue
		}
		results = append(results, models.SearchResult{
			Note:    n,
			Score:   s,
			Snippet: Snippet(n, query),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Note.UpdatedAt.After(results[j].Note.UpdatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
