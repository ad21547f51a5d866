package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"semdex/internal/domain"
)

// Snapshot is the immutable aggregate of all file records and chunks at one
// embedding-model generation. Mutating operations return a new Snapshot; a
// published Snapshot is never written again, so readers can hold one across
// an entire query without locking.
type Snapshot struct {
	Model     string
	Dimension int
	Files     map[string]domain.FileRecord
	Chunks    map[string]domain.Chunk
}

func NewSnapshot(model string, dimension int) *Snapshot {
	return &Snapshot{
		Model:     model,
		Dimension: dimension,
		Files:     make(map[string]domain.FileRecord),
		Chunks:    make(map[string]domain.Chunk),
	}
}

func (s *Snapshot) FileCount() int {
	return len(s.Files)
}

func (s *Snapshot) ChunkCount() int {
	return len(s.Chunks)
}

func (s *Snapshot) File(path string) (domain.FileRecord, bool) {
	rec, ok := s.Files[path]
	return rec, ok
}

func (s *Snapshot) Chunk(id string) (domain.Chunk, bool) {
	ch, ok := s.Chunks[id]
	return ch, ok
}

// ChunksFor returns a file's chunks in ordinal order, following the record's
// chunk-id list.
func (s *Snapshot) ChunksFor(path string) []domain.Chunk {
	rec, ok := s.Files[path]
	if !ok {
		return nil
	}
	chunks := make([]domain.Chunk, 0, len(rec.ChunkIDs))
	for _, id := range rec.ChunkIDs {
		if ch, ok := s.Chunks[id]; ok {
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// Paths returns all indexed paths in lexical order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		Model:     s.Model,
		Dimension: s.Dimension,
		Files:     make(map[string]domain.FileRecord, len(s.Files)+1),
		Chunks:    make(map[string]domain.Chunk, len(s.Chunks)),
	}
	for p, rec := range s.Files {
		next.Files[p] = rec
	}
	for id, ch := range s.Chunks {
		next.Chunks[id] = ch
	}
	return next
}

// WithUpsert returns a new snapshot where path's record and chunks replace
// any prior state for that path. The receiver is unchanged.
func (s *Snapshot) WithUpsert(rec domain.FileRecord, chunks []domain.Chunk) (*Snapshot, error) {
	if len(rec.ChunkIDs) != len(chunks) {
		return nil, fmt.Errorf("record lists %d chunk ids but %d chunks given", len(rec.ChunkIDs), len(chunks))
	}
	if len(rec.Vector) != s.Dimension {
		return nil, fmt.Errorf("file vector dimension mismatch: expected %d, got %d", s.Dimension, len(rec.Vector))
	}
	for i, ch := range chunks {
		if ch.Path != rec.Path {
			return nil, fmt.Errorf("chunk %d belongs to %q, record is %q", i, ch.Path, rec.Path)
		}
		if ch.ID != rec.ChunkIDs[i] {
			return nil, fmt.Errorf("chunk %d id %q does not match record order", i, ch.ID)
		}
		if len(ch.Vector) != s.Dimension {
			return nil, fmt.Errorf("chunk vector dimension mismatch: expected %d, got %d", s.Dimension, len(ch.Vector))
		}
	}

	next := s.clone()
	if old, ok := next.Files[rec.Path]; ok {
		for _, id := range old.ChunkIDs {
			delete(next.Chunks, id)
		}
	}
	next.Files[rec.Path] = rec
	for _, ch := range chunks {
		next.Chunks[ch.ID] = ch
	}
	return next, nil
}

// WithRemove returns a new snapshot without path and all its chunks.
func (s *Snapshot) WithRemove(path string) *Snapshot {
	rec, ok := s.Files[path]
	if !ok {
		return s
	}
	next := s.clone()
	for _, id := range rec.ChunkIDs {
		delete(next.Chunks, id)
	}
	delete(next.Files, path)
	return next
}

// SnapshotStore publishes the current snapshot through an atomic pointer.
// The reindexer is the only writer; readers take Current() once per query and
// never observe a half-applied update.
type SnapshotStore struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

func NewSnapshotStore(snap *Snapshot) *SnapshotStore {
	st := &SnapshotStore{}
	st.current.Store(snap)
	return st
}

// Current returns the snapshot as of now. Wait-free.
func (st *SnapshotStore) Current() *Snapshot {
	return st.current.Load()
}

// Upsert swaps in a snapshot where path's record replaces the prior one.
func (st *SnapshotStore) Upsert(rec domain.FileRecord, chunks []domain.Chunk) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next, err := st.current.Load().WithUpsert(rec, chunks)
	if err != nil {
		return err
	}
	st.current.Store(next)
	return nil
}

// Remove swaps in a snapshot without path, purging its chunks.
func (st *SnapshotStore) Remove(path string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current.Store(st.current.Load().WithRemove(path))
}

// Replace installs a fully rebuilt snapshot. This is the only way to change
// model generation or dimension.
func (st *SnapshotStore) Replace(snap *Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current.Store(snap)
}
