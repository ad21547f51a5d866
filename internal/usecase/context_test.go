package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"semdex/internal/domain"
)

func resultFor(path string, score float64, text string) domain.SearchResult {
	return domain.SearchResult{
		Score:   score,
		Path:    path,
		Snippet: text,
	}
}

func TestContextBuildEmpty(t *testing.T) {
	b := NewContextBuilder(8000, 2000)
	if out := b.Build(nil); out != "" {
		t.Errorf("expected empty context, got %q", out)
	}
}

func TestContextBuildGroupsByFile(t *testing.T) {
	b := NewContextBuilder(8000, 2000)

	results := []domain.SearchResult{
		resultFor("a.go", 0.9, "alpha one"),
		resultFor("a.go", 0.7, "alpha two"),
		resultFor("b.go", 0.5, "beta one"),
	}
	out := b.Build(results)

	headerA := "=== a.go (relevance: 0.90) ==="
	headerB := "=== b.go (relevance: 0.50) ==="
	if strings.Count(out, headerA) != 1 {
		t.Errorf("expected one header for a.go, output:\n%s", out)
	}
	if strings.Index(out, headerA) > strings.Index(out, headerB) {
		t.Error("file groups out of result order")
	}
	if strings.Index(out, "alpha one") > strings.Index(out, "alpha two") {
		t.Error("chunks within a group out of result order")
	}
}

func TestContextBuildPerChunkCap(t *testing.T) {
	b := NewContextBuilder(8000, 10)

	long := strings.Repeat("x", 50)
	out := b.Build([]domain.SearchResult{resultFor("a.go", 1, long)})

	if !strings.Contains(out, strings.Repeat("x", 10)+"...") {
		t.Error("long chunk not capped with ellipsis")
	}
	if strings.Contains(out, strings.Repeat("x", 11)) {
		t.Error("chunk exceeds per-chunk cap")
	}
}

func TestContextBuildPerChunkCapRuneBoundary(t *testing.T) {
	// Cap of 5 bytes falls inside the third two-byte rune; the cut must back
	// up to the rune boundary instead of emitting half of it.
	b := NewContextBuilder(8000, 5)

	out := b.Build([]domain.SearchResult{resultFor("a.go", 1, "ééé")})

	if !utf8.ValidString(out) {
		t.Fatal("context contains invalid UTF-8")
	}
	if !strings.Contains(out, "éé...") {
		t.Errorf("expected cut at rune boundary, output:\n%s", out)
	}
	if strings.Contains(out, "ééé") {
		t.Error("chunk exceeds per-chunk cap")
	}
}

func TestContextBuildBudget(t *testing.T) {
	const maxChars = 120
	b := NewContextBuilder(maxChars, 2000)

	var results []domain.SearchResult
	for _, path := range []string{"a.go", "b.go", "c.go", "d.go"} {
		results = append(results, resultFor(path, 0.8, strings.Repeat("w", 40)))
	}
	out := b.Build(results)

	if len(out) > maxChars+len(truncationMarker) {
		t.Errorf("output length %d exceeds budget %d plus marker", len(out), maxChars)
	}
	if !strings.HasSuffix(out, truncationMarker) {
		t.Error("over-budget build missing truncation marker")
	}
	// At least the first file must have made it in.
	if !strings.Contains(out, "a.go") {
		t.Error("first result missing from truncated context")
	}
}

func TestContextBuildDeterministic(t *testing.T) {
	b := NewContextBuilder(200, 50)

	results := []domain.SearchResult{
		resultFor("b.go", 0.9, "one"),
		resultFor("a.go", 0.8, "two"),
		resultFor("b.go", 0.6, "three"),
	}
	first := b.Build(results)
	second := b.Build(results)
	if first != second {
		t.Error("identical inputs produced different contexts")
	}
}
