package port

import (
	"context"

	"nhp/internal/domain"
)

// KnowledgeStore holds monograph chunks and answers similarity queries.
type KnowledgeStore interface {
	// Upsert replaces every chunk of batch.Source with batch.Chunks.
	Upsert(ctx context.Context, batch domain.ChunkBatch) error

	// Query returns up to topK chunks ordered by descending similarity.
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error)

	// Reset discards all chunks of all documents.
	Reset(ctx context.Context) error

	// CountDocuments returns the number of distinct source documents.
	CountDocuments(ctx context.Context) (int, error)

	DeleteDocument(ctx context.Context, source string) error

	// Generation changes on every Reset.
	Generation() uint64
}
