package cli

import (
	"errors"
	"fmt"
	"time"

	"semdex/config"
	"semdex/internal/adapter/chunker"
	"semdex/internal/adapter/embedding"
	"semdex/internal/adapter/fs"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/port"
	"semdex/internal/usecase"
)

const indexName = "default"

// newEmbedder builds the configured embedding backend behind an LRU cache,
// so repeated queries and unchanged chunks skip the network round trip.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	var (
		inner port.Embedder
		err   error
	)
	switch cfg.Embedding.Provider {
	case "openai":
		inner, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	case "ollama":
		inner, err = embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	case "mock":
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize, time.Hour), nil
}

func newWalker(cfg *config.Config) *fs.Walker {
	return fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
}

func newIndexUseCase(cfg *config.Config, emb port.Embedder) *usecase.IndexUseCase {
	chk := chunker.NewLineChunker(cfg.Index.WindowLines, cfg.Index.OverlapLines, cfg.Index.MinChunkLines)
	return usecase.NewIndexUseCase(newWalker(cfg), chk, emb, cfg.Index.Concurrency, logger)
}

// loadSnapshot opens the persisted index for path and restores its snapshot.
// A missing index returns an empty snapshot rather than an error; a corrupt
// one does not.
func loadSnapshot(path string, emb port.Embedder) (*store.Snapshot, *store.BoltIndex, error) {
	idx, err := store.OpenBoltIndex(config.IndexDBPath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index store: %w", err)
	}

	snap, err := idx.Load(indexName)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			return store.NewSnapshot(emb.ModelName(), emb.Dimension()), idx, nil
		}
		idx.Close()
		return nil, nil, err
	}
	return snap, idx, nil
}
