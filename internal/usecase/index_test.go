package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"semdex/internal/adapter/chunker"
	"semdex/internal/adapter/embedding"
	"semdex/internal/adapter/fs"
	"semdex/internal/port"
)

// countingEmbedder wraps another embedder and counts texts embedded.
type countingEmbedder struct {
	inner port.Embedder

	mu    sync.Mutex
	texts int
	fail  bool
}

func (c *countingEmbedder) Embed(texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.texts += len(texts)
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return nil, errors.New("embedder offline")
	}
	return c.inner.Embed(texts)
}

func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *countingEmbedder) embedded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texts
}

func (c *countingEmbedder) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func manyLines(prefix string, n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = prefix
	}
	return strings.Join(lines, "\n")
}

func newTestIndexer(emb port.Embedder) *IndexUseCase {
	walker := fs.NewWalker([]string{"**/*.txt"}, nil)
	ch := chunker.NewLineChunker(5, 0, 2)
	return NewIndexUseCase(walker, ch, emb, 2, nil)
}

func TestBuildSnapshot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", manyLines("alpha", 12))
	writeFile(t, root, "sub/b.txt", manyLines("beta", 3))
	writeFile(t, root, "empty.txt", "")
	writeFile(t, root, "ignored.go", "package x")

	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(16)}
	idx := newTestIndexer(emb)

	snap, result, err := idx.BuildSnapshot(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if snap.FileCount() != 2 {
		t.Errorf("expected 2 indexed files, got %d: %v", snap.FileCount(), snap.Paths())
	}
	if result.FilesIndexed != 2 {
		t.Errorf("expected 2 files indexed, got %d", result.FilesIndexed)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("expected the empty file skipped, got %d skips", result.FilesSkipped)
	}

	// a.txt is 12 lines at window 5: chunks of 5, 5, 2.
	if got := len(snap.ChunksFor("a.txt")); got != 3 {
		t.Errorf("expected 3 chunks for a.txt, got %d", got)
	}
	if got := len(snap.ChunksFor("sub/b.txt")); got != 1 {
		t.Errorf("expected 1 chunk for sub/b.txt, got %d", got)
	}

	// File vector is the mean of the chunk vectors.
	rec, _ := snap.File("sub/b.txt")
	only := snap.ChunksFor("sub/b.txt")[0]
	for i := range rec.Vector {
		if rec.Vector[i] != only.Vector[i] {
			t.Fatal("single-chunk file vector should equal its chunk vector")
		}
	}
}

func TestBuildSnapshotReusesUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", manyLines("alpha", 12))
	writeFile(t, root, "b.txt", manyLines("beta", 6))

	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(16)}
	idx := newTestIndexer(emb)

	first, _, err := idx.BuildSnapshot(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	after := emb.embedded()

	// Nothing changed: a rebuild must not embed a single text.
	second, result, err := idx.BuildSnapshot(context.Background(), root, first, nil)
	if err != nil {
		t.Fatal(err)
	}
	if emb.embedded() != after {
		t.Errorf("unchanged rebuild embedded %d extra texts", emb.embedded()-after)
	}
	if result.FilesReused != 2 || result.FilesIndexed != 0 {
		t.Errorf("expected 2 reused / 0 indexed, got %d / %d", result.FilesReused, result.FilesIndexed)
	}

	// Touch one file: only its chunks are re-embedded.
	writeFile(t, root, "b.txt", manyLines("gamma", 6))
	third, result, err := idx.BuildSnapshot(context.Background(), root, second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesReused != 1 || result.FilesIndexed != 1 {
		t.Errorf("expected 1 reused / 1 indexed, got %d / %d", result.FilesReused, result.FilesIndexed)
	}
	// b.txt is 6 lines at window 5 with the short tail folded in: 1 chunk.
	if extra := emb.embedded() - after; extra != 1 {
		t.Errorf("expected 1 text re-embedded for b.txt, got %d", extra)
	}
	recA, _ := third.File("a.txt")
	prevA, _ := second.File("a.txt")
	if recA.Hash != prevA.Hash {
		t.Error("unchanged file's record was rebuilt")
	}
}

func TestBuildSnapshotSkipsUnreadable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.txt", manyLines("fine", 4))
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken.txt")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(16)}
	idx := newTestIndexer(emb)

	snap, result, err := idx.BuildSnapshot(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatalf("unreadable file must not fail the build: %v", err)
	}
	if snap.FileCount() != 1 {
		t.Errorf("expected 1 file, got %d", snap.FileCount())
	}
	if result.FilesSkipped != 1 || len(result.Errors) != 1 {
		t.Errorf("expected 1 skip with 1 recorded error, got %d / %d", result.FilesSkipped, len(result.Errors))
	}
}

func TestBuildSnapshotEmbedderFailureAborts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", manyLines("alpha", 4))

	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(16)}
	emb.setFail(true)
	idx := newTestIndexer(emb)

	if _, _, err := idx.BuildSnapshot(context.Background(), root, nil, nil); err == nil {
		t.Fatal("expected build to fail when the embedder is down")
	}
}

func TestMeanVector(t *testing.T) {
	got := meanVector([][]float32{{1, 3}, {3, 5}}, 2)
	if got[0] != 2 || got[1] != 4 {
		t.Errorf("mean of {1,3} and {3,5} should be {2,4}, got %v", got)
	}
	if got := meanVector(nil, 3); len(got) != 3 {
		t.Errorf("empty input should still produce a zero vector of the right size")
	}
}
