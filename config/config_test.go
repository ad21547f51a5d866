package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.WindowLines != 50 {
		t.Errorf("expected WindowLines=50, got %d", cfg.Index.WindowLines)
	}
	if cfg.Index.MinChunkLines != 10 {
		t.Errorf("expected MinChunkLines=10, got %d", cfg.Index.MinChunkLines)
	}
	if cfg.Search.FileTopK != 5 {
		t.Errorf("expected FileTopK=5, got %d", cfg.Search.FileTopK)
	}
	if cfg.Context.MaxChars != 8000 {
		t.Errorf("expected MaxChars=8000, got %d", cfg.Context.MaxChars)
	}
	if cfg.Context.ChunkChars != 2000 {
		t.Errorf("expected ChunkChars=2000, got %d", cfg.Context.ChunkChars)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "semdex.yaml")

	content := `
index:
  window_lines: 25
  overlap_lines: 5
search:
  top_k: 20
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.WindowLines != 25 {
		t.Errorf("expected WindowLines=25, got %d", cfg.Index.WindowLines)
	}
	if cfg.Index.OverlapLines != 5 {
		t.Errorf("expected OverlapLines=5, got %d", cfg.Index.OverlapLines)
	}
	if cfg.Search.TopK != 20 {
		t.Errorf("expected TopK=20, got %d", cfg.Search.TopK)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "semdex.yaml")

	content := `
context:
  max_chars: 4000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Context.MaxChars != 4000 {
		t.Errorf("expected MaxChars=4000, got %d", cfg.Context.MaxChars)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".semdex", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
