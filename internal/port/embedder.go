package port

// Embedder generates vector embeddings for text. Calls are synchronous and
// potentially expensive; implementations accept batches so callers can
// amortize the cost across a rebuild.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
