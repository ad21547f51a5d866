package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"semdex/config"
	"semdex/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "semdex",
	Short: "Local semantic code index and retrieval",
	Long: `semdex builds a local semantic index over your files and answers
natural-language queries against it. Files are chunked, embedded, and ranked
by cosine similarity, with a hierarchical mode that narrows to the most
relevant files before ranking their chunks.

Everything stays on disk next to your project; no file content leaves the
machine except the text sent to the configured embedding endpoint.

Example usage:
  semdex index .                      # Build the index
  semdex search -q "error handling"   # Query it
  semdex watch                        # Keep it fresh while you edit`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = logging.New(cfg.Logging.Level)
		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./semdex.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
