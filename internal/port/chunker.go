package port

import "semdex/internal/domain"

type Chunker interface {
	Chunk(path, content string) ([]domain.Chunk, error)
}
