package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"semdex/internal/adapter/fs"
	"semdex/internal/port"
)

// Watcher turns raw fsnotify events under a root into debounced, pattern-
// filtered change events. Subdirectories are watched recursively, including
// ones created while watching.
type Watcher struct {
	root      string
	walker    *fs.Walker
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	logger    *slog.Logger

	// indexed, when set, lists the currently indexed relative paths. It is
	// consulted when a directory disappears, because fsnotify reports only
	// the directory itself, not the files beneath it.
	indexed func() []string
}

func NewWatcher(root string, walker *fs.Walker, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		root:      root,
		walker:    walker,
		debouncer: NewDebouncer(window),
		fsw:       fsw,
		logger:    logger,
	}, nil
}

// SetIndexed registers a provider of indexed relative paths, used to expand
// a directory removal into deletes for the files it contained. Call before
// Run.
func (w *Watcher) SetIndexed(fn func() []string) {
	w.indexed = fn
}

// Events is the debounced change stream. It closes when Run returns.
func (w *Watcher) Events() <-chan port.ChangeEvent {
	return w.debouncer.Events()
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.debouncer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return w.loop(ctx)
	})
	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (w *Watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// A new directory needs its own watch before events inside it arrive.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", rel, "error", err)
			}
			return
		}
	}

	if !w.walker.Match(rel) {
		// A removed or renamed-away directory arrives as a single event for
		// the directory path, which no file pattern matches. Expand it into
		// deletes for every indexed path underneath.
		if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
			w.removeSubtree(rel)
		}
		return
	}

	var t port.ChangeType
	switch {
	case ev.Op.Has(fsnotify.Create):
		t = port.ChangeCreate
	case ev.Op.Has(fsnotify.Write):
		t = port.ChangeModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		t = port.ChangeDelete
	default:
		// Chmod and friends carry no content change.
		return
	}

	w.debouncer.Add(port.ChangeEvent{RelPath: rel, Type: t})
}

func (w *Watcher) removeSubtree(rel string) {
	if w.indexed == nil || rel == "." {
		return
	}
	prefix := rel + "/"
	for _, p := range w.indexed() {
		if strings.HasPrefix(p, prefix) {
			w.debouncer.Add(port.ChangeEvent{RelPath: p, Type: port.ChangeDelete})
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr == nil && rel != "." {
			// Respect exclude patterns so .git and friends are never watched.
			if w.walker.Excluded(filepath.ToSlash(rel) + "/") {
				return filepath.SkipDir
			}
		}
		if aerr := w.fsw.Add(path); aerr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", aerr)
		}
		return nil
	})
}
