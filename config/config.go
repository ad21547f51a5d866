package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the semdex tool.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Context   ContextConfig   `yaml:"context"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IndexConfig holds indexing and chunking configuration.
type IndexConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	WindowLines   int      `yaml:"window_lines"`
	OverlapLines  int      `yaml:"overlap_lines"`
	MinChunkLines int      `yaml:"min_chunk_lines"`
	Concurrency   int      `yaml:"concurrency"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	Mode          string  `yaml:"mode"` // "file", "chunk", "hierarchical"
	TopK          int     `yaml:"top_k"`
	FileTopK      int     `yaml:"file_top_k"`
	ChunksPerFile int     `yaml:"chunks_per_file"`
	MinScore      float64 `yaml:"min_score"` // Filter results below this score (0 = disabled)
}

// ContextConfig holds context assembly configuration.
type ContextConfig struct {
	MaxChars   int `yaml:"max_chars"`
	ChunkChars int `yaml:"chunk_chars"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// WatchConfig holds change-notification configuration.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Includes:      []string{"**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.java", "**/*.c", "**/*.cpp", "**/*.h", "**/*.rs", "**/*.md", "**/*.txt", "**/*.json", "**/*.yaml", "**/*.yml"},
			Excludes:      []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/dist/**", "**/build/**", "**/__pycache__/**", "**/.semdex/**", "**/*.min.js"},
			WindowLines:   50,
			OverlapLines:  0,
			MinChunkLines: 10,
			Concurrency:   4,
		},
		Search: SearchConfig{
			Mode:          "hierarchical",
			TopK:          10,
			FileTopK:      5,
			ChunksPerFile: 3,
		},
		Context: ContextConfig{
			MaxChars:   8000,
			ChunkChars: 2000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 768,
			BatchSize: 100,
			CacheSize: 512,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DebounceWindow returns the watch debounce window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	ms := c.Watch.DebounceMS
	if ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for semdex.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try semdex.yaml in the directory
	path := filepath.Join(dir, "semdex.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .semdex/config.yaml
	path = filepath.Join(dir, ".semdex", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".semdex", "index.db")
}

// EnsureIndexDir ensures the .semdex directory exists.
func EnsureIndexDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".semdex"), 0755)
}
