package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// MockEmbedder produces deterministic vectors from a content hash. Used for
// tests and offline operation; identical text always yields an identical
// vector, so rebuilds of unchanged content are byte-stable.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	seed := sha256.Sum256([]byte(text))

	var norm float64
	for j := 0; j < e.dimension; j++ {
		h := sha256.Sum256(append(seed[:], byte(j), byte(j>>8)))
		v := float32(binary.BigEndian.Uint32(h[:4]))/float32(math.MaxUint32)*2 - 1
		vec[j] = v
		norm += float64(v) * float64(v)
	}

	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for j := range vec {
			vec[j] /= n
		}
	}
	return vec
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
