package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"semdex/internal/adapter/fs"
	"semdex/internal/adapter/store"
	"semdex/internal/domain"
	"semdex/internal/port"
)

// IndexUseCase builds index snapshots from a directory tree.
type IndexUseCase struct {
	walker      *fs.Walker
	chunker     port.Chunker
	embedder    port.Embedder
	concurrency int
	logger      *slog.Logger
}

func NewIndexUseCase(walker *fs.Walker, chunker port.Chunker, embedder port.Embedder, concurrency int, logger *slog.Logger) *IndexUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		walker:      walker,
		chunker:     chunker,
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger,
	}
}

// IndexResult summarizes one build.
type IndexResult struct {
	FilesIndexed  int
	FilesReused   int
	FilesSkipped  int
	ChunksCreated int
	Errors        []string
}

// ProgressFunc receives completion updates while a build runs.
type ProgressFunc func(done, total int, path string)

// fileOutcome is the per-file result of the parallel phase. Exactly one of
// skip / record is meaningful.
type fileOutcome struct {
	skip   bool
	reused bool
	record domain.FileRecord
	chunks []domain.Chunk
}

// BuildSnapshot walks root and produces a complete snapshot. When prev is
// non-nil, files whose content hash is unchanged reuse their previous record
// and chunks without re-embedding. Unreadable and empty files are skipped
// with a warning, never failing the build.
func (u *IndexUseCase) BuildSnapshot(ctx context.Context, root string, prev *store.Snapshot, progress ProgressFunc) (*store.Snapshot, *IndexResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &IndexResult{}
	outcomes := make([]fileOutcome, len(files))

	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			outcome, err := u.processFile(file, prev)
			if err != nil {
				// Embedding failures abort the build so a partial snapshot
				// never replaces a complete one.
				if isFatal(err) {
					return fmt.Errorf("%s: %w", file.RelPath, err)
				}
				u.logger.Warn("skipping document", "path", file.RelPath, "error", err)
				outcome = fileOutcome{skip: true}
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
				mu.Unlock()
			}
			outcomes[i] = outcome

			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if progress != nil {
				progress(d, len(files), file.RelPath)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Assemble in walk order so identical inputs give identical snapshots.
	snap := store.NewSnapshot(u.embedder.ModelName(), u.embedder.Dimension())
	for _, o := range outcomes {
		if o.skip {
			result.FilesSkipped++
			continue
		}
		snap, err = snap.WithUpsert(o.record, o.chunks)
		if err != nil {
			return nil, nil, err
		}
		if o.reused {
			result.FilesReused++
		} else {
			result.FilesIndexed++
		}
		result.ChunksCreated += len(o.chunks)
	}

	return snap, result, nil
}

func (u *IndexUseCase) processFile(file port.FileInfo, prev *store.Snapshot) (fileOutcome, error) {
	content, hash, err := fs.ReadFile(file.Path)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}

	if prev != nil {
		if rec, ok := prev.File(file.RelPath); ok && rec.Hash == hash {
			return fileOutcome{
				reused: true,
				record: rec,
				chunks: prev.ChunksFor(file.RelPath),
			}, nil
		}
	}

	rec, chunks, err := u.IndexFile(file.RelPath, content, hash)
	if err != nil {
		return fileOutcome{}, err
	}
	if len(chunks) == 0 {
		return fileOutcome{skip: true}, nil
	}
	return fileOutcome{record: rec, chunks: chunks}, nil
}

// IndexFile chunks and embeds a single document. The file vector is the mean
// of its chunk vectors. An empty document yields no record and no chunks.
func (u *IndexUseCase) IndexFile(relPath, content, hash string) (domain.FileRecord, []domain.Chunk, error) {
	chunks, err := u.chunker.Chunk(relPath, content)
	if err != nil {
		return domain.FileRecord{}, nil, fmt.Errorf("failed to chunk %s: %w", relPath, err)
	}
	if len(chunks) == 0 {
		return domain.FileRecord{}, nil, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := u.embedder.Embed(texts)
	if err != nil {
		return domain.FileRecord{}, nil, fmt.Errorf("%w: %v", domain.ErrEmbedderUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return domain.FileRecord{}, nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedderUnavailable, len(vectors), len(chunks))
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].Vector = vectors[i]
		ids[i] = chunks[i].ID
	}

	return domain.FileRecord{
		Path:     relPath,
		Hash:     hash,
		Vector:   meanVector(vectors, u.embedder.Dimension()),
		ChunkIDs: ids,
	}, chunks, nil
}

// meanVector averages the chunk vectors componentwise.
func meanVector(vectors [][]float32, dim int) []float32 {
	mean := make([]float32, dim)
	if len(vectors) == 0 {
		return mean
	}
	for _, v := range vectors {
		for i := range v {
			if i < dim {
				mean[i] += v[i]
			}
		}
	}
	n := float32(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// isFatal reports whether a per-file error must abort the whole build
// instead of skipping the file.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrEmbedderUnavailable)
}
