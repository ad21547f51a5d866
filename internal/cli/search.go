package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semdex/config"
	"semdex/internal/adapter/retriever"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/usecase"
)

var (
	searchQuery      string
	searchMode       string
	searchTopK       int
	searchFileTopK   int
	searchPerFile    int
	searchMaxContext int
	searchJSON       bool
	searchNoContext  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the semantic index",
	Long: `Search indexed files by meaning rather than keywords.

Modes:
  file          rank whole files
  chunk         rank individual chunks across all files
  hierarchical  pick the best files, then the best chunks within them

Examples:
  semdex search -q "where are errors wrapped"
  semdex search -q "config parsing" --mode chunk -k 10
  semdex search -q "retry logic" --mode hierarchical --file-top-k 3 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "search mode: file, chunk, or hierarchical (default from config)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().IntVar(&searchFileTopK, "file-top-k", 0, "files to consider in hierarchical mode")
	searchCmd.Flags().IntVar(&searchPerFile, "chunks-per-file", 0, "chunks per file in hierarchical mode")
	searchCmd.Flags().IntVar(&searchMaxContext, "max-context", 0, "context budget in characters")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchNoContext, "no-context", false, "skip the assembled context block")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rootDir := GetRootDir()

	if _, err := os.Stat(config.IndexDBPath(rootDir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'semdex index' first")
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	snap, idx, err := loadSnapshot(rootDir, emb)
	if err != nil {
		return err
	}
	defer idx.Close()

	mode := cfg.Search.Mode
	if searchMode != "" {
		mode = searchMode
	}
	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	fileTopK := cfg.Search.FileTopK
	if searchFileTopK > 0 {
		fileTopK = searchFileTopK
	}
	perFile := cfg.Search.ChunksPerFile
	if searchPerFile > 0 {
		perFile = searchPerFile
	}
	maxContext := cfg.Context.MaxChars
	if searchMaxContext > 0 {
		maxContext = searchMaxContext
	}

	searchUC := usecase.NewSearchUseCase(
		store.NewSnapshotStore(snap),
		retriever.NewEngine(emb),
		usecase.NewContextBuilder(maxContext, cfg.Context.ChunkChars),
		cfg.Search.MinScore,
	)

	resp, err := searchUC.Search(usecase.SearchRequest{
		Query:         searchQuery,
		Mode:          domain.SearchMode(mode),
		TopK:          topK,
		FileTopK:      fileTopK,
		ChunksPerFile: perFile,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmbedderUnavailable) {
			return fmt.Errorf("embedding backend unreachable, index left untouched: %w", err)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		if searchNoContext {
			resp.Context = ""
		}
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(resp.Results), searchQuery)
	for i, r := range resp.Results {
		if r.ChunkID == "" {
			fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, r.Path, r.Score)
			continue
		}
		fmt.Printf("--- [%d] %s:L%d-%d (score: %.2f) ---\n", i+1, r.Path, r.StartLine, r.EndLine, r.Score)
		text := r.Snippet
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	if len(resp.FileOverview) > 0 {
		fmt.Println("Files:")
		for _, f := range resp.FileOverview {
			fmt.Printf("  %.2f  %s\n", f.Score, f.Path)
		}
	}

	if !searchNoContext && resp.Context != "" {
		fmt.Println("\nContext:")
		fmt.Println(resp.Context)
	}

	return nil
}
