package domain

import "time"

// Document identifies a tracked source file. The index replaces a document
// wholesale when its content hash changes; it is never patched in place.
type Document struct {
	Path    string
	Hash    string
	ModTime time.Time
}

// Chunk is a bounded, ordered fragment of one document, independently
// embedded. Ordinals are dense and start at 0 within the owning document.
type Chunk struct {
	ID        string
	Path      string
	Ordinal   int
	StartLine int
	EndLine   int
	StartByte int
	EndByte   int
	Text      string
	Vector    []float32
}

// FileRecord is the per-document index entry: a representative vector for the
// whole file plus the ordered ids of its chunks. len(ChunkIDs) always equals
// the number of chunks stored for the path.
type FileRecord struct {
	Path     string
	Hash     string
	Vector   []float32
	ChunkIDs []string
}

// SearchMode selects a retrieval strategy.
type SearchMode string

const (
	ModeFile         SearchMode = "file"
	ModeChunk        SearchMode = "chunk"
	ModeHierarchical SearchMode = "hierarchical"
)

// SearchResult is transient; it is never persisted. ChunkID is empty for
// file-level results.
type SearchResult struct {
	Score     float64 `json:"score"`
	Path      string  `json:"path"`
	ChunkID   string  `json:"chunk_id,omitempty"`
	Ordinal   int     `json:"ordinal,omitempty"`
	StartLine int     `json:"start_line,omitempty"`
	EndLine   int     `json:"end_line,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
}

// Stats summarizes the current snapshot for the status interface.
type Stats struct {
	IndexedFiles  int    `json:"indexed_files"`
	IndexedChunks int    `json:"indexed_chunks"`
	Status        string `json:"status"`
}
