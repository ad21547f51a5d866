package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"semdex/internal/port"
)

// CachedEmbedder wraps an Embedder with an expirable LRU keyed by content
// hash. Repeat queries and unchanged chunks skip the external call; misses
// are forwarded as a single batch.
type CachedEmbedder struct {
	inner port.Embedder
	cache *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(inner port.Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

func (e *CachedEmbedder) Embed(texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := e.inner.Embed(missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range embeddings {
		i := missIdx[j]
		results[i] = vec
		e.cache.Add(cacheKey(texts[i]), vec)
	}

	return results, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
