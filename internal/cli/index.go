package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"semdex/config"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh the semantic index",
	Long: `Index files in the specified directory for semantic retrieval.
The index is stored in .semdex/index.db within the target directory.

Files whose content is unchanged since the last run keep their stored
embeddings; only new or modified files are re-embedded. Changing the
embedding model or chunking settings forces a full rebuild.

Examples:
  semdex index .                 # Index current directory
  semdex index /path/to/project  # Index specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	if err := config.EnsureIndexDir(path); err != nil {
		return fmt.Errorf("failed to create .semdex directory: %w", err)
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	idx, err := store.OpenBoltIndex(config.IndexDBPath(path))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer idx.Close()

	compat, err := idx.CheckCompatibility(cfg)
	if err != nil {
		return fmt.Errorf("failed to check index compatibility: %w", err)
	}

	var prev *store.Snapshot
	if compat.NeedsRebuild {
		fmt.Printf("Full rebuild required: %s\n", compat.Reason)
	} else {
		prev, err = idx.Load(indexName)
		if err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			if errors.Is(err, domain.ErrCorruptIndex) {
				fmt.Printf("Stored index unusable, rebuilding: %v\n", err)
			} else {
				return err
			}
		}
	}

	indexUC := newIndexUseCase(cfg, emb)

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time
	var initialized bool

	progress := func(done, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			remaining := total - done
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	snap, result, err := indexUC.BuildSnapshot(cmd.Context(), path, prev, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if err := idx.Save(indexName, snap); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if err := idx.MarkCompatible(cfg); err != nil {
		return fmt.Errorf("failed to record index settings: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files reused:   %d (unchanged)\n", result.FilesReused)
	fmt.Printf("  Files skipped:  %d\n", result.FilesSkipped)
	fmt.Printf("  Chunks total:   %d\n", snap.ChunkCount())

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(path))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
