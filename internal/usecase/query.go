package usecase

import (
	"fmt"

	"semdex/internal/adapter/retriever"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
)

// SearchUseCase answers queries against the current snapshot. Every request
// reads one snapshot pointer and works on it alone, so concurrent reindexing
// never changes results mid-query.
type SearchUseCase struct {
	snapshots *store.SnapshotStore
	engine    *retriever.Engine
	builder   *ContextBuilder
	minScore  float64
}

func NewSearchUseCase(snapshots *store.SnapshotStore, engine *retriever.Engine, builder *ContextBuilder, minScore float64) *SearchUseCase {
	return &SearchUseCase{
		snapshots: snapshots,
		engine:    engine,
		builder:   builder,
		minScore:  minScore,
	}
}

// SearchRequest selects a retrieval strategy and its limits.
// MaxContextChars overrides the configured context budget when positive.
type SearchRequest struct {
	Query           string
	Mode            domain.SearchMode
	TopK            int
	FileTopK        int
	ChunksPerFile   int
	MaxContextChars int
}

// SearchResponse carries the ranked results, a file-level overview of where
// the matches live, and an assembled context string.
type SearchResponse struct {
	Results      []domain.SearchResult `json:"results"`
	FileOverview []domain.SearchResult `json:"file_overview"`
	Context      string                `json:"context"`
}

func (u *SearchUseCase) Search(req SearchRequest) (*SearchResponse, error) {
	snap := u.snapshots.Current()

	var (
		results []domain.SearchResult
		err     error
	)
	switch req.Mode {
	case domain.ModeFile:
		results, err = u.engine.SearchFiles(snap, req.Query, req.TopK)
	case domain.ModeChunk:
		results, err = u.engine.SearchChunks(snap, req.Query, req.TopK)
	case domain.ModeHierarchical:
		results, err = u.engine.SearchHierarchical(snap, req.Query, req.FileTopK, req.ChunksPerFile)
	default:
		return nil, fmt.Errorf("unknown search mode %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if u.minScore > 0 {
		results = filterByScore(results, u.minScore)
	}

	// The overview is always the file-level ranking, whatever strategy
	// produced the results. With a caching embedder the second query
	// embedding is a cache hit.
	overviewK := req.FileTopK
	if overviewK <= 0 {
		overviewK = req.TopK
	}
	overview, err := u.engine.SearchFiles(snap, req.Query, overviewK)
	if err != nil {
		return nil, err
	}

	builder := u.builder
	if req.MaxContextChars > 0 {
		builder = NewContextBuilder(req.MaxContextChars, u.builder.perChunkChars)
	}

	return &SearchResponse{
		Results:      results,
		FileOverview: overview,
		Context:      u.buildContext(builder, snap, req.Mode, results),
	}, nil
}

// buildContext assembles the context string. Chunk-bearing modes use the
// results directly. File mode results carry no snippets, so the context is
// built from each matched file's chunks in document order instead.
func (u *SearchUseCase) buildContext(builder *ContextBuilder, snap *store.Snapshot, mode domain.SearchMode, results []domain.SearchResult) string {
	if mode != domain.ModeFile {
		return builder.Build(results)
	}

	var expanded []domain.SearchResult
	for _, r := range results {
		for _, ch := range snap.ChunksFor(r.Path) {
			expanded = append(expanded, domain.SearchResult{
				Score:     r.Score,
				Path:      ch.Path,
				ChunkID:   ch.ID,
				Ordinal:   ch.Ordinal,
				StartLine: ch.StartLine,
				EndLine:   ch.EndLine,
				Snippet:   ch.Text,
			})
		}
	}
	return builder.Build(expanded)
}

// Stats reports the size of the current snapshot.
func (u *SearchUseCase) Stats() domain.Stats {
	snap := u.snapshots.Current()
	status := "ready"
	if snap.FileCount() == 0 {
		status = "empty"
	}
	return domain.Stats{
		IndexedFiles:  snap.FileCount(),
		IndexedChunks: snap.ChunkCount(),
		Status:        status,
	}
}

func filterByScore(results []domain.SearchResult, min float64) []domain.SearchResult {
	filtered := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= min {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
