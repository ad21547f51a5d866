package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semdex/config"
	"semdex/internal/adapter/retriever"
	"semdex/internal/adapter/store"
	"semdex/internal/usecase"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index status",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
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

	searchUC := usecase.NewSearchUseCase(
		store.NewSnapshotStore(snap),
		retriever.NewEngine(emb),
		usecase.NewContextBuilder(cfg.Context.MaxChars, cfg.Context.ChunkChars),
		cfg.Search.MinScore,
	)
	stats := searchUC.Stats()

	if statsJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Indexed files:  %d\n", stats.IndexedFiles)
	fmt.Printf("Indexed chunks: %d\n", stats.IndexedChunks)
	fmt.Printf("Status:         %s\n", stats.Status)
	fmt.Printf("Model:          %s (%d dimensions)\n", snap.Model, snap.Dimension)
	fmt.Printf("Database:       %s\n", config.IndexDBPath(rootDir))
	return nil
}
