package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"semdex/internal/domain"
)

// BoltIndex persists whole snapshots in a bbolt database. Each index name
// owns two co-located buckets: "<name>.vectors" holds file- and chunk-keyed
// embedding vectors, "<name>.meta" holds the structured records. Save
// rewrites both inside one transaction, so a persisted index is always
// either the old or the new complete state.
type BoltIndex struct {
	db *bbolt.DB
}

const (
	filePrefix  = "f/"
	chunkPrefix = "c/"
	keyInfo     = "info"
)

type indexInfo struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Files     int    `json:"files"`
	Chunks    int    `json:"chunks"`
	SavedAt   int64  `json:"saved_at"`
}

type fileMeta struct {
	Hash     string   `json:"hash"`
	ChunkIDs []string `json:"chunk_ids"`
}

type chunkMeta struct {
	Path      string `json:"path"`
	Ordinal   int    `json:"ordinal"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Text      string `json:"text"`
}

func OpenBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &BoltIndex{db: db}, nil
}

func (b *BoltIndex) DB() *bbolt.DB {
	return b.db
}

func (b *BoltIndex) Close() error {
	return b.db.Close()
}

func vectorsBucket(name string) []byte { return []byte(name + ".vectors") }
func metaBucket(name string) []byte    { return []byte(name + ".meta") }

// Save persists snap under name, replacing any prior state atomically.
func (b *BoltIndex) Save(name string, snap *Snapshot) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{vectorsBucket(name), metaBucket(name)} {
			if tx.Bucket(bucket) != nil {
				if err := tx.DeleteBucket(bucket); err != nil {
					return err
				}
			}
		}

		vecs, err := tx.CreateBucket(vectorsBucket(name))
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucket(metaBucket(name))
		if err != nil {
			return err
		}

		info := indexInfo{
			Model:     snap.Model,
			Dimension: snap.Dimension,
			Files:     snap.FileCount(),
			Chunks:    snap.ChunkCount(),
			SavedAt:   time.Now().Unix(),
		}
		infoData, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(keyInfo), infoData); err != nil {
			return err
		}

		for _, path := range snap.Paths() {
			rec := snap.Files[path]

			vecData, err := json.Marshal(rec.Vector)
			if err != nil {
				return err
			}
			if err := vecs.Put([]byte(filePrefix+path), vecData); err != nil {
				return err
			}

			fm := fileMeta{Hash: rec.Hash, ChunkIDs: rec.ChunkIDs}
			fmData, err := json.Marshal(fm)
			if err != nil {
				return err
			}
			if err := meta.Put([]byte(filePrefix+path), fmData); err != nil {
				return err
			}

			for _, id := range rec.ChunkIDs {
				ch, ok := snap.Chunks[id]
				if !ok {
					return fmt.Errorf("record %q lists missing chunk %q", path, id)
				}

				cvData, err := json.Marshal(ch.Vector)
				if err != nil {
					return err
				}
				if err := vecs.Put([]byte(chunkPrefix+id), cvData); err != nil {
					return err
				}

				cm := chunkMeta{
					Path:      ch.Path,
					Ordinal:   ch.Ordinal,
					StartLine: ch.StartLine,
					EndLine:   ch.EndLine,
					StartByte: ch.StartByte,
					EndByte:   ch.EndByte,
					Text:      ch.Text,
				}
				cmData, err := json.Marshal(cm)
				if err != nil {
					return err
				}
				if err := meta.Put([]byte(chunkPrefix+id), cmData); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Load restores the snapshot saved under name. Both parts must be present
// and mutually consistent; count or dimension disagreements refuse the load
// with ErrCorruptIndex rather than repairing silently.
func (b *BoltIndex) Load(name string) (*Snapshot, error) {
	var snap *Snapshot

	err := b.db.View(func(tx *bbolt.Tx) error {
		vecs := tx.Bucket(vectorsBucket(name))
		meta := tx.Bucket(metaBucket(name))
		if vecs == nil || meta == nil {
			return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
		}

		infoData := meta.Get([]byte(keyInfo))
		if infoData == nil {
			return fmt.Errorf("%w: missing index info", domain.ErrCorruptIndex)
		}
		var info indexInfo
		if err := json.Unmarshal(infoData, &info); err != nil {
			return fmt.Errorf("%w: unreadable index info: %v", domain.ErrCorruptIndex, err)
		}

		snap = NewSnapshot(info.Model, info.Dimension)

		err := meta.ForEach(func(k, v []byte) error {
			key := string(k)
			switch {
			case key == keyInfo:
				return nil

			case len(key) > len(filePrefix) && key[:len(filePrefix)] == filePrefix:
				path := key[len(filePrefix):]
				var fm fileMeta
				if err := json.Unmarshal(v, &fm); err != nil {
					return fmt.Errorf("%w: file record %q: %v", domain.ErrCorruptIndex, path, err)
				}
				vecData := vecs.Get([]byte(filePrefix + path))
				if vecData == nil {
					return fmt.Errorf("%w: file %q has metadata but no vector", domain.ErrCorruptIndex, path)
				}
				var vec []float32
				if err := json.Unmarshal(vecData, &vec); err != nil {
					return fmt.Errorf("%w: file vector %q: %v", domain.ErrCorruptIndex, path, err)
				}
				if len(vec) != info.Dimension {
					return fmt.Errorf("%w: file %q vector dimension %d, index is %d", domain.ErrCorruptIndex, path, len(vec), info.Dimension)
				}
				snap.Files[path] = domain.FileRecord{
					Path:     path,
					Hash:     fm.Hash,
					Vector:   vec,
					ChunkIDs: fm.ChunkIDs,
				}

			case len(key) > len(chunkPrefix) && key[:len(chunkPrefix)] == chunkPrefix:
				id := key[len(chunkPrefix):]
				var cm chunkMeta
				if err := json.Unmarshal(v, &cm); err != nil {
					return fmt.Errorf("%w: chunk record %q: %v", domain.ErrCorruptIndex, id, err)
				}
				vecData := vecs.Get([]byte(chunkPrefix + id))
				if vecData == nil {
					return fmt.Errorf("%w: chunk %q has metadata but no vector", domain.ErrCorruptIndex, id)
				}
				var vec []float32
				if err := json.Unmarshal(vecData, &vec); err != nil {
					return fmt.Errorf("%w: chunk vector %q: %v", domain.ErrCorruptIndex, id, err)
				}
				if len(vec) != info.Dimension {
					return fmt.Errorf("%w: chunk %q vector dimension %d, index is %d", domain.ErrCorruptIndex, id, len(vec), info.Dimension)
				}
				snap.Chunks[id] = domain.Chunk{
					ID:        id,
					Path:      cm.Path,
					Ordinal:   cm.Ordinal,
					StartLine: cm.StartLine,
					EndLine:   cm.EndLine,
					StartByte: cm.StartByte,
					EndByte:   cm.EndByte,
					Text:      cm.Text,
					Vector:    vec,
				}

			default:
				return fmt.Errorf("%w: unexpected metadata key %q", domain.ErrCorruptIndex, key)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if snap.FileCount() != info.Files {
			return fmt.Errorf("%w: info lists %d files, found %d", domain.ErrCorruptIndex, info.Files, snap.FileCount())
		}
		if snap.ChunkCount() != info.Chunks {
			return fmt.Errorf("%w: info lists %d chunks, found %d", domain.ErrCorruptIndex, info.Chunks, snap.ChunkCount())
		}

		// Every record's chunk-id list must match the chunks actually stored.
		referenced := 0
		for path, rec := range snap.Files {
			for _, id := range rec.ChunkIDs {
				ch, ok := snap.Chunks[id]
				if !ok {
					return fmt.Errorf("%w: file %q references missing chunk %q", domain.ErrCorruptIndex, path, id)
				}
				if ch.Path != path {
					return fmt.Errorf("%w: chunk %q stored under %q but referenced by %q", domain.ErrCorruptIndex, id, ch.Path, path)
				}
				referenced++
			}
		}
		if referenced != snap.ChunkCount() {
			return fmt.Errorf("%w: %d chunks stored, %d referenced by records", domain.ErrCorruptIndex, snap.ChunkCount(), referenced)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
