package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"semdex/config"
	"semdex/internal/adapter/store"
	"semdex/internal/adapter/watch"
	"semdex/internal/usecase"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index in sync with file changes",
	Long: `Watch the directory for changes and reindex incrementally.

An initial full pass brings the index up to date, then individual files are
re-embedded as they change. Queries against the stored index keep working
throughout; each change is persisted once it is indexed.

Stop with Ctrl-C; the current index state is saved on shutdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		path = args[0]
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
		return err
	}

	var initial *store.Snapshot
	if compat.NeedsRebuild {
		logger.Info("full rebuild required", "reason", compat.Reason)
		initial = store.NewSnapshot(emb.ModelName(), emb.Dimension())
	} else {
		var idxErr error
		initial, idxErr = idx.Load(indexName)
		if idxErr != nil {
			logger.Warn("starting from an empty index", "reason", idxErr)
			initial = store.NewSnapshot(emb.ModelName(), emb.Dimension())
		}
	}

	snapshots := store.NewSnapshotStore(initial)
	indexUC := newIndexUseCase(cfg, emb)
	reindexer := usecase.NewReindexer(indexUC, snapshots, path, logger)

	// Persist every installed snapshot so a crash loses at most the change
	// being processed.
	reindexer.SetOnInstall(func(snap *store.Snapshot) {
		if err := idx.Save(indexName, snap); err != nil {
			logger.Error("failed to persist index", "error", err)
		}
	})

	watcher, err := watch.NewWatcher(path, newWalker(cfg), cfg.DebounceWindow(), logger)
	if err != nil {
		return err
	}
	// Deleting a directory emits one event for the directory alone; the
	// watcher expands it into deletes for the indexed files beneath it.
	watcher.SetIndexed(func() []string {
		return snapshots.Current().Paths()
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("building initial index", "path", path)
	if err := reindexer.FullRebuild(ctx); err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}
	if err := idx.MarkCompatible(cfg); err != nil {
		return err
	}
	logger.Info("watching for changes",
		"files", snapshots.Current().FileCount(),
		"chunks", snapshots.Current().ChunkCount(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		return reindexer.Run(ctx, watcher.Events())
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Final save covers anything that raced with shutdown.
	if err := idx.Save(indexName, snapshots.Current()); err != nil {
		return fmt.Errorf("failed to persist index on shutdown: %w", err)
	}
	logger.Info("index saved, shutting down")
	return nil
}
