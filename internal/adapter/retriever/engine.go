package retriever

import (
	"fmt"
	"math"
	"sort"

	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/port"
)

// Engine executes the three retrieval strategies against an index snapshot.
// All ranking uses cosine similarity. Ordering is deterministic: descending
// score with exact ties broken by ascending path, then ordinal for chunks.
type Engine struct {
	embedder port.Embedder
}

func NewEngine(embedder port.Embedder) *Engine {
	return &Engine{embedder: embedder}
}

func (e *Engine) embedQuery(query string) ([]float32, error) {
	embeddings, err := e.embedder.Embed([]string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedderUnavailable, err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrEmbedderUnavailable)
	}
	return embeddings[0], nil
}

// SearchFiles ranks every file record against the query.
func (e *Engine) SearchFiles(snap *store.Snapshot, query string, topK int) ([]domain.SearchResult, error) {
	queryVec, err := e.embedQuery(query)
	if err != nil {
		return nil, err
	}
	return rankFiles(snap, queryVec, topK), nil
}

// SearchChunks ranks every chunk against the query; several chunks of one
// file may appear.
func (e *Engine) SearchChunks(snap *store.Snapshot, query string, topK int) ([]domain.SearchResult, error) {
	queryVec, err := e.embedQuery(query)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, snap.ChunkCount())
	for _, ch := range snap.Chunks {
		results = append(results, chunkResult(ch, cosineSimilarity(queryVec, ch.Vector)))
	}
	sortChunkResults(results)
	return truncate(results, topK), nil
}

// SearchHierarchical ranks files first, then each selected file's own chunks.
// Results are grouped by file in file-rank order; inside a group chunks are
// ordered by descending score. At most fileTopK*chunksPerFile results come
// back, drawn only from the fileTopK best files. Chunk ranking never crosses
// files, so cost is bounded by the selected files' chunks, not the index.
func (e *Engine) SearchHierarchical(snap *store.Snapshot, query string, fileTopK, chunksPerFile int) ([]domain.SearchResult, error) {
	queryVec, err := e.embedQuery(query)
	if err != nil {
		return nil, err
	}

	files := rankFiles(snap, queryVec, fileTopK)

	var results []domain.SearchResult
	for _, f := range files {
		chunks := snap.ChunksFor(f.Path)
		group := make([]domain.SearchResult, 0, len(chunks))
		for _, ch := range chunks {
			group = append(group, chunkResult(ch, cosineSimilarity(queryVec, ch.Vector)))
		}
		sortChunkResults(group)
		results = append(results, truncate(group, chunksPerFile)...)
	}
	return results, nil
}

func rankFiles(snap *store.Snapshot, queryVec []float32, topK int) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, snap.FileCount())
	for _, rec := range snap.Files {
		results = append(results, domain.SearchResult{
			Score: cosineSimilarity(queryVec, rec.Vector),
			Path:  rec.Path,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	return truncate(results, topK)
}

func chunkResult(ch domain.Chunk, score float64) domain.SearchResult {
	return domain.SearchResult{
		Score:     score,
		Path:      ch.Path,
		ChunkID:   ch.ID,
		Ordinal:   ch.Ordinal,
		StartLine: ch.StartLine,
		EndLine:   ch.EndLine,
		Snippet:   ch.Text,
	}
}

func sortChunkResults(results []domain.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].Ordinal < results[j].Ordinal
	})
}

// truncate caps results at k. Non-positive limits mean no results, not
// unlimited; callers own their defaults.
func truncate(results []domain.SearchResult, k int) []domain.SearchResult {
	if k <= 0 {
		return nil
	}
	if k >= len(results) {
		return results
	}
	return results[:k]
}

// cosineSimilarity reports similarity in [-1, 1]. Mismatched or zero-norm
// vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against float drift outside the reported range.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}
