package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"semdex/internal/domain"
)

// LineChunker splits document content into ordered, line-windowed chunks.
// Cuts prefer structural boundaries when one falls inside the window;
// otherwise the window size decides. A trailing remainder shorter than the
// minimum folds into the previous chunk, and content shorter than the minimum
// yields exactly one chunk.
type LineChunker struct {
	windowLines   int
	overlapLines  int
	minChunkLines int
}

func NewLineChunker(windowLines, overlapLines, minChunkLines int) *LineChunker {
	if windowLines <= 0 {
		windowLines = 50
	}
	if minChunkLines <= 0 {
		minChunkLines = 1
	}
	if minChunkLines > windowLines {
		minChunkLines = windowLines
	}
	if overlapLines < 0 {
		overlapLines = 0
	}
	if overlapLines >= windowLines {
		overlapLines = windowLines - 1
	}
	return &LineChunker{
		windowLines:   windowLines,
		overlapLines:  overlapLines,
		minChunkLines: minChunkLines,
	}
}

// Chunk splits content into chunks with dense ordinals starting at 0.
// Joining the chunk texts in ordinal order on "\n" (with zero overlap)
// reproduces content exactly.
func (c *LineChunker) Chunk(path, content string) ([]domain.Chunk, error) {
	if content == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	total := len(lines)

	// Byte offset of each line start within content.
	offsets := make([]int, total)
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}

	var chunks []domain.Chunk
	ordinal := 0
	start := 0

	for start < total {
		end := start + c.windowLines
		if end >= total {
			end = total
		} else {
			if cut := c.boundaryCut(lines, start, end); cut > 0 {
				end = cut
			}
			// Fold a too-small tail into this chunk.
			if total-end < c.minChunkLines {
				end = total
			}
		}

		text := strings.Join(lines[start:end], "\n")
		startByte := offsets[start]
		chunks = append(chunks, domain.Chunk{
			ID:        chunkID(path, ordinal),
			Path:      path,
			Ordinal:   ordinal,
			StartLine: start + 1,
			EndLine:   end,
			StartByte: startByte,
			EndByte:   startByte + len(text),
			Text:      text,
		})
		ordinal++

		if end >= total {
			break
		}

		next := end - c.overlapLines
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// boundaryCut looks backward from end for a structural boundary line to start
// the next chunk at. Only cuts that keep this chunk at least minChunkLines
// long are considered. Returns 0 when no boundary qualifies.
func (c *LineChunker) boundaryCut(lines []string, start, end int) int {
	for i := end; i > start+c.minChunkLines; i-- {
		if isBoundary(lines[i]) {
			return i
		}
	}
	return 0
}

func chunkID(path string, ordinal int) string {
	data := fmt.Sprintf("%s#%d", path, ordinal)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
