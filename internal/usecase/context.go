package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"semdex/internal/domain"
)

const truncationMarker = "\n... (truncated)"

// ContextBuilder assembles search results into a single prompt-ready string
// under a character budget. Results are grouped by file in first-appearance
// order, each group under a relevance header, each chunk capped individually
// before the overall budget applies.
type ContextBuilder struct {
	maxChars      int
	perChunkChars int
}

func NewContextBuilder(maxChars, perChunkChars int) *ContextBuilder {
	if maxChars < 1 {
		maxChars = 8000
	}
	if perChunkChars < 1 {
		perChunkChars = 2000
	}
	return &ContextBuilder{
		maxChars:      maxChars,
		perChunkChars: perChunkChars,
	}
}

// Build renders results into one context string. The output never exceeds
// maxChars plus the truncation marker. Identical inputs produce identical
// output.
func (b *ContextBuilder) Build(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	// Group by file, keeping the order files first appear in the results.
	var order []string
	groups := make(map[string][]domain.SearchResult)
	best := make(map[string]float64)
	for _, r := range results {
		if _, seen := groups[r.Path]; !seen {
			order = append(order, r.Path)
			best[r.Path] = r.Score
		}
		groups[r.Path] = append(groups[r.Path], r)
	}

	var sb strings.Builder
	truncated := false

out:
	for _, path := range order {
		header := fmt.Sprintf("=== %s (relevance: %.2f) ===\n", path, best[path])
		if sb.Len()+len(header) > b.maxChars {
			truncated = true
			break
		}
		sb.WriteString(header)

		for _, r := range groups[path] {
			text := r.Snippet
			if len(text) > b.perChunkChars {
				text = cutAtRune(text, b.perChunkChars) + "..."
			}
			block := text + "\n\n"
			if sb.Len()+len(block) > b.maxChars {
				truncated = true
				break out
			}
			sb.WriteString(block)
		}
	}

	if truncated {
		sb.WriteString(truncationMarker)
	}
	return sb.String()
}

// cutAtRune truncates s to at most max bytes without splitting a rune.
func cutAtRune(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
