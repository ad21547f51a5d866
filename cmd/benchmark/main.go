// Benchmark compares the three search modes against a stored index: result
// quality per mode plus query latency. Useful after changing the embedding
// model or chunking settings.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"semdex/config"
	"semdex/internal/adapter/embedding"
	"semdex/internal/adapter/retriever"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/port"
)

func main() {
	indexPath := flag.String("index", ".", "Path to indexed directory")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -index ./tmp -q \"query\"")
		fmt.Println("\nRuns the query in all three modes and reports:")
		fmt.Println("  1. Similarity quality per mode")
		fmt.Println("  2. Query latency per mode")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	idx, err := store.OpenBoltIndex(config.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	snap, err := idx.Load("default")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
		os.Exit(1)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	engine := retriever.NewEngine(embedder)

	fmt.Println("SEARCH MODE BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Files: %d, chunks: %d\n", snap.FileCount(), snap.ChunkCount())
	fmt.Printf("Model: %s (%d dimensions)\n", snap.Model, snap.Dimension)
	fmt.Printf("Query: \"%s\"\n\n", *query)

	runMode("file", func() ([]domain.SearchResult, error) {
		return engine.SearchFiles(snap, *query, *topK)
	})
	runMode("chunk", func() ([]domain.SearchResult, error) {
		return engine.SearchChunks(snap, *query, *topK)
	})
	runMode("hierarchical", func() ([]domain.SearchResult, error) {
		return engine.SearchHierarchical(snap, *query, cfg.Search.FileTopK, cfg.Search.ChunksPerFile)
	})
}

func runMode(mode string, search func() ([]domain.SearchResult, error)) {
	start := time.Now()
	results, err := search()
	elapsed := time.Since(start)

	fmt.Printf("--- %s mode (%s) ---\n", mode, elapsed.Round(time.Microsecond))
	if err != nil {
		fmt.Printf("  error: %v\n\n", err)
		return
	}
	if len(results) == 0 {
		fmt.Println("  no results")
		return
	}

	total := 0.0
	for i, r := range results {
		total += r.Score
		loc := r.Path
		if r.ChunkID != "" {
			loc = fmt.Sprintf("%s:L%d-%d", r.Path, r.StartLine, r.EndLine)
		}
		preview := strings.ReplaceAll(r.Snippet, "\n", " ")
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		fmt.Printf("  %d. [%s %.3f] %s\n", i+1, rating(r.Score), r.Score, loc)
		if preview != "" {
			fmt.Printf("     %s\n", preview)
		}
	}
	fmt.Printf("  avg similarity: %.3f, top-1: %.3f\n\n", total/float64(len(results)), results[0].Score)
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
