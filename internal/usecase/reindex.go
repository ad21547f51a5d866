package usecase

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"semdex/internal/adapter/fs"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/port"
)

// PathStatus is where a path sits in its indexing lifecycle.
type PathStatus int

const (
	StatusUnindexed PathStatus = iota
	StatusIndexed
	StatusStale
	StatusRemoved
)

func (s PathStatus) String() string {
	switch s {
	case StatusUnindexed:
		return "unindexed"
	case StatusIndexed:
		return "indexed"
	case StatusStale:
		return "stale"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Reindexer keeps the live snapshot in sync with filesystem changes. It is
// the single writer of the snapshot store: queries keep reading whichever
// snapshot they already hold while rebuilds install new ones.
//
// states holds only paths with pending work; Indexed and Unindexed paths
// carry no entry, snapshot membership is their source of truth. gens holds a
// monotonic per-path counter that increments on every event and is never
// reset, even when a path's states entry clears. A finished rebuild installs
// only if its generation is still the path's latest; keeping counters across
// entry removal means an old in-flight rebuild can never collide with a
// fresh entry's generation and install a stale result.
type Reindexer struct {
	indexer   *IndexUseCase
	snapshots *store.SnapshotStore
	root      string
	logger    *slog.Logger

	// onInstall, when set, runs after every successful snapshot change,
	// outside the state lock. The watch command uses it to persist.
	onInstall func(*store.Snapshot)

	mu          sync.Mutex
	states      map[string]PathStatus
	gens        map[string]uint64
	fullRunning bool
	fullQueued  bool

	wg sync.WaitGroup
}

func NewReindexer(indexer *IndexUseCase, snapshots *store.SnapshotStore, root string, logger *slog.Logger) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		indexer:   indexer,
		snapshots: snapshots,
		root:      root,
		logger:    logger,
		states:    make(map[string]PathStatus),
		gens:      make(map[string]uint64),
	}
}

// SetOnInstall registers a callback for successful snapshot installs. Call
// before Run or any HandleEvent.
func (r *Reindexer) SetOnInstall(fn func(*store.Snapshot)) {
	r.onInstall = fn
}

// Run consumes debounced change events until ctx is cancelled or the channel
// closes, then waits for in-flight rebuilds to drain.
func (r *Reindexer) Run(ctx context.Context, events <-chan port.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				r.wg.Wait()
				return nil
			}
			r.HandleEvent(ev)
		}
	}
}

// Wait blocks until all dispatched rebuilds finish.
func (r *Reindexer) Wait() {
	r.wg.Wait()
}

// Status reports the lifecycle state of a path.
func (r *Reindexer) Status(relPath string) PathStatus {
	r.mu.Lock()
	if status, ok := r.states[relPath]; ok {
		r.mu.Unlock()
		return status
	}
	r.mu.Unlock()

	if _, ok := r.snapshots.Current().File(relPath); ok {
		return StatusIndexed
	}
	return StatusUnindexed
}

// HandleEvent applies one debounced change. Creates and modifies mark the
// path stale and dispatch a rebuild for it; deletes remove it from the
// snapshot immediately. During a full rebuild, changes are only recorded and
// get replayed once the rebuilt snapshot is installed.
func (r *Reindexer) HandleEvent(ev port.ChangeEvent) {
	var installed bool

	r.mu.Lock()
	switch ev.Type {
	case port.ChangeDelete:
		r.gens[ev.RelPath]++
		if r.fullRunning {
			r.states[ev.RelPath] = StatusRemoved
			break
		}
		delete(r.states, ev.RelPath)
		r.snapshots.Remove(ev.RelPath)
		installed = true
		r.logger.Info("document removed", "path", ev.RelPath)

	default:
		r.gens[ev.RelPath]++
		r.states[ev.RelPath] = StatusStale
		if r.fullRunning {
			break
		}
		r.dispatchLocked(ev.RelPath, r.gens[ev.RelPath])
	}
	r.mu.Unlock()

	if installed {
		r.notifyInstall()
	}
}

// FullRebuild re-walks the whole root and swaps in the result wholesale. At
// most one rebuild runs at a time; requests arriving while one is running
// coalesce into a single follow-up pass.
func (r *Reindexer) FullRebuild(ctx context.Context) error {
	r.mu.Lock()
	if r.fullRunning {
		r.fullQueued = true
		r.mu.Unlock()
		return nil
	}
	r.fullRunning = true
	r.mu.Unlock()

	for {
		prev := r.snapshots.Current()
		snap, result, err := r.indexer.BuildSnapshot(ctx, r.root, prev, nil)

		r.mu.Lock()
		if err != nil {
			r.fullRunning = false
			r.fullQueued = false
			r.mu.Unlock()
			return err
		}

		r.snapshots.Replace(snap)
		r.logger.Info("full rebuild installed",
			"files", snap.FileCount(),
			"chunks", snap.ChunkCount(),
			"reused", result.FilesReused,
		)

		if r.fullQueued {
			// A follow-up pass re-walks everything, so pending per-path
			// work is subsumed by it.
			r.fullQueued = false
			r.states = make(map[string]PathStatus)
			r.mu.Unlock()
			r.notifyInstall()
			continue
		}

		r.fullRunning = false
		r.replayPendingLocked()
		r.mu.Unlock()
		r.notifyInstall()
		return nil
	}
}

func (r *Reindexer) dispatchLocked(relPath string, gen uint64) {
	r.wg.Add(1)
	go r.rebuildPath(relPath, gen)
}

// replayPendingLocked re-applies changes recorded while a full rebuild ran.
func (r *Reindexer) replayPendingLocked() {
	for path, status := range r.states {
		switch status {
		case StatusRemoved:
			delete(r.states, path)
			r.snapshots.Remove(path)
		case StatusStale:
			r.dispatchLocked(path, r.gens[path])
		}
	}
}

// rebuildPath re-indexes one document and installs the result, unless a
// newer event superseded this rebuild while it ran. A superseded result is
// discarded outright; the event that superseded it dispatched its own
// rebuild. Failures leave the path stale so the next event retries it.
func (r *Reindexer) rebuildPath(relPath string, gen uint64) {
	defer r.wg.Done()

	abs := filepath.Join(r.root, filepath.FromSlash(relPath))
	content, hash, readErr := fs.ReadFile(abs)

	var (
		rec    domain.FileRecord
		chunks []domain.Chunk
		err    error
	)
	if readErr != nil {
		err = readErr
	} else {
		rec, chunks, err = r.indexer.IndexFile(relPath, content, hash)
	}

	var installed bool

	r.mu.Lock()
	if _, ok := r.states[relPath]; !ok || r.gens[relPath] != gen {
		r.mu.Unlock()
		return
	}

	switch {
	case err != nil:
		r.logger.Warn("reindex failed, will retry on next change", "path", relPath, "error", err)

	case len(chunks) == 0:
		// Now-empty document: drop it from the index.
		delete(r.states, relPath)
		r.snapshots.Remove(relPath)
		installed = true

	default:
		if uerr := r.snapshots.Upsert(rec, chunks); uerr != nil {
			r.logger.Error("failed to install reindexed document", "path", relPath, "error", uerr)
		} else {
			delete(r.states, relPath)
			installed = true
			r.logger.Info("document reindexed", "path", relPath, "chunks", len(chunks))
		}
	}
	r.mu.Unlock()

	if installed {
		r.notifyInstall()
	}
}

func (r *Reindexer) notifyInstall() {
	if r.onInstall != nil {
		r.onInstall(r.snapshots.Current())
	}
}
