package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func genLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return strings.Join(lines, "\n")
}

func TestLineChunkerWindowing(t *testing.T) {
	// window=50, no overlap, min=10: 120 lines -> 3 chunks, 10 -> 1, 500 -> 10.
	c := NewLineChunker(50, 0, 10)

	cases := []struct {
		lines  int
		chunks int
	}{
		{120, 3},
		{10, 1},
		{500, 10},
	}

	for _, tc := range cases {
		chunks, err := c.Chunk("a.go", genLines(tc.lines))
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != tc.chunks {
			t.Errorf("%d lines: expected %d chunks, got %d", tc.lines, tc.chunks, len(chunks))
		}
	}
}

func TestLineChunkerReconstruction(t *testing.T) {
	c := NewLineChunker(50, 0, 10)

	for _, n := range []int{1, 9, 10, 49, 50, 51, 120, 500} {
		content := genLines(n)
		chunks, err := c.Chunk("a.go", content)
		if err != nil {
			t.Fatal(err)
		}

		parts := make([]string, len(chunks))
		for i, ch := range chunks {
			parts[i] = ch.Text
		}
		if got := strings.Join(parts, "\n"); got != content {
			t.Errorf("%d lines: concatenated chunks do not reproduce source", n)
		}
	}
}

func TestLineChunkerOrdinals(t *testing.T) {
	c := NewLineChunker(20, 0, 5)

	chunks, err := c.Chunk("a.go", genLines(95))
	if err != nil {
		t.Fatal(err)
	}

	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
		if ch.Path != "a.go" {
			t.Errorf("chunk %d has path %q", i, ch.Path)
		}
	}
}

func TestLineChunkerByteRanges(t *testing.T) {
	c := NewLineChunker(3, 0, 1)

	content := "aa\nbbb\ncccc\ndd\ne"
	chunks, err := c.Chunk("a.go", content)
	if err != nil {
		t.Fatal(err)
	}

	for _, ch := range chunks {
		if got := content[ch.StartByte:ch.EndByte]; got != ch.Text {
			t.Errorf("chunk %d byte range [%d:%d] yields %q, want %q",
				ch.Ordinal, ch.StartByte, ch.EndByte, got, ch.Text)
		}
	}
}

func TestLineChunkerEmptyContent(t *testing.T) {
	c := NewLineChunker(50, 0, 10)

	chunks, err := c.Chunk("empty.go", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty content, got %d", len(chunks))
	}
}

func TestLineChunkerShortContent(t *testing.T) {
	c := NewLineChunker(50, 0, 10)

	content := "just a single line"
	chunks, err := c.Chunk("single.go", content)
	if err != nil {
		t.Fatal(err)
	}

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != content {
		t.Error("expected chunk text to match content")
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 1 {
		t.Errorf("expected lines 1-1, got %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestLineChunkerSmallTailFolds(t *testing.T) {
	// 54 lines with window 50 leaves a 4-line tail, below the minimum of 10;
	// it must fold into the previous chunk instead of forming its own.
	c := NewLineChunker(50, 0, 10)

	chunks, err := c.Chunk("a.go", genLines(54))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].EndLine != 54 {
		t.Errorf("expected chunk to cover all 54 lines, got end line %d", chunks[0].EndLine)
	}
}

func TestLineChunkerOverlap(t *testing.T) {
	c := NewLineChunker(10, 2, 3)

	chunks, err := c.Chunk("a.go", genLines(30))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		gap := chunks[i+1].StartLine - chunks[i].EndLine
		if gap > 1 {
			t.Errorf("gap between chunk %d and %d", i, i+1)
		}
		// Overlapping region carries identical text.
		if chunks[i+1].StartLine <= chunks[i].EndLine {
			overlap := chunks[i].EndLine - chunks[i+1].StartLine + 1
			tail := strings.Split(chunks[i].Text, "\n")
			head := strings.Split(chunks[i+1].Text, "\n")
			for j := 0; j < overlap; j++ {
				if tail[len(tail)-overlap+j] != head[j] {
					t.Errorf("overlap mismatch between chunk %d and %d", i, i+1)
					break
				}
			}
		}
	}
}

func TestLineChunkerBoundaryPreference(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString(fmt.Sprintf("// filler %d\n", i))
	}
	b.WriteString("func second() {\n")
	for i := 0; i < 10; i++ {
		b.WriteString(fmt.Sprintf("\tbody %d\n", i))
	}
	b.WriteString("}")

	c := NewLineChunker(10, 0, 3)
	chunks, err := c.Chunk("a.go", b.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// The cut should land on the function opening, not mid-window.
	if !strings.HasPrefix(chunks[1].Text, "func second()") {
		t.Errorf("expected second chunk to start at the function boundary, got %q",
			strings.SplitN(chunks[1].Text, "\n", 2)[0])
	}
}

func TestChunkIDUniqueness(t *testing.T) {
	c := NewLineChunker(10, 2, 3)

	chunks, err := c.Chunk("a.go", genLines(60))
	if err != nil {
		t.Fatal(err)
	}

	ids := make(map[string]bool)
	for _, ch := range chunks {
		if ids[ch.ID] {
			t.Errorf("duplicate chunk ID: %s", ch.ID)
		}
		ids[ch.ID] = true
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	c := NewLineChunker(10, 0, 3)

	a, _ := c.Chunk("a.go", genLines(30))
	b, _ := c.Chunk("a.go", genLines(30))
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d: ids differ between identical runs", i)
		}
	}
}
