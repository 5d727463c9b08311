package rag

import (
	"context"

	"rag-chatbot/internal/models"
)

// Index is a nearest-neighbour store over chunk embeddings. Build always
// replaces the previous contents; Query before Build fails with
// models.ErrIndexNotBuilt.
type Index interface {
	Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	Len() int
	Close() error
}
