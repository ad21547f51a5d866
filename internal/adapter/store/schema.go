package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"semdex/config"
)

// CurrentSchemaVersion is the current storage format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	bucketSchema     = []byte("schema")
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int
	ConfigHash string
}

// GetSchemaInfo retrieves the current schema info from the database.
func (b *BoltIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSchema)
		if bucket == nil {
			return nil
		}

		if data := bucket.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				info.Version = 1
			}
		}
		if data := bucket.Get(keyConfigHash); data != nil {
			info.ConfigHash = string(data)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (b *BoltIndex) SetSchemaInfo(info *SchemaInfo) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketSchema)
		if err != nil {
			return err
		}

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := bucket.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return bucket.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the configuration that determines vector and
// chunk shape. A change means persisted vectors are no longer comparable to
// new ones, so the index must be rebuilt from scratch — never merged.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider      string `json:"provider"`
		Model         string `json:"model"`
		Dimension     int    `json:"dimension"`
		WindowLines   int    `json:"window_lines"`
		OverlapLines  int    `json:"overlap_lines"`
		MinChunkLines int    `json:"min_chunk_lines"`
	}{
		Provider:      cfg.Embedding.Provider,
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		WindowLines:   cfg.Index.WindowLines,
		OverlapLines:  cfg.Index.OverlapLines,
		MinChunkLines: cfg.Index.MinChunkLines,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// CompatibilityResult describes the result of a compatibility check.
type CompatibilityResult struct {
	NeedsRebuild bool
	Reason       string
}

// CheckCompatibility reports whether the persisted index can be reused with
// the given configuration or must be rebuilt.
func (b *BoltIndex) CheckCompatibility(cfg *config.Config) (*CompatibilityResult, error) {
	info, err := b.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &CompatibilityResult{}

	if info.Version > CurrentSchemaVersion {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}
	if info.Version != 0 && info.Version < CurrentSchemaVersion {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("storage format upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	newHash := ComputeConfigHash(cfg)
	if info.ConfigHash != "" && info.ConfigHash != newHash {
		result.NeedsRebuild = true
		result.Reason = "embedding model or chunking configuration changed"
	}

	return result, nil
}

// MarkCompatible records the current schema version and config hash after a
// successful build.
func (b *BoltIndex) MarkCompatible(cfg *config.Config) error {
	return b.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}
