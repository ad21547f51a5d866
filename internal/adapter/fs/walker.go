package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"semdex/internal/port"
)

// Walker enumerates indexable files under a root using doublestar glob
// include/exclude patterns, matched against root-relative paths.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if w.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				RelPath: relPath,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	return files, err
}

// Match reports whether a single root-relative path passes the include and
// exclude patterns. The watch loop uses this to filter change events.
func (w *Walker) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	return w.shouldInclude(relPath) && !w.shouldExclude(relPath)
}

// Excluded reports whether a root-relative path hits an exclude pattern.
// Directory paths should carry a trailing slash, matching Walk's behavior.
func (w *Walker) Excluded(relPath string) bool {
	return w.shouldExclude(filepath.ToSlash(relPath))
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ReadFile reads a document and returns its content with a SHA-256 content
// hash. Indexing compares the hash against the stored record to skip
// unchanged documents.
func ReadFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), HashContent(data), nil
}

// HashContent returns the hex SHA-256 of content.
func HashContent(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
