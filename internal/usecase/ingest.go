package usecase

import (
	"context"
	"errors"
	"fmt"

	"nhp/internal/adapter/chunker"
	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/port"
)

// MonographIngestor chunks, embeds and stores monograph text.
type MonographIngestor struct {
	store    port.KnowledgeStore
	embedder port.Embedder
	chunker  *chunker.WordChunker
}

// NewMonographIngestor creates a new monograph ingestor.
func NewMonographIngestor(store port.KnowledgeStore, embedder port.Embedder, chunker *chunker.WordChunker) *MonographIngestor {
	return &MonographIngestor{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
	}
}

// Ingest stores text as the full content of source and returns the number of chunks written.
func (u *MonographIngestor) Ingest(ctx context.Context, text, source string) (int, error) {
	return u.IngestAt(ctx, text, source, u.store.Generation())
}

// IngestAt is Ingest against a store generation captured by the caller. If the knowledge
// base was reset since then the batch is rejected with domain.ErrStaleBatch.
func (u *MonographIngestor) IngestAt(ctx context.Context, text, source string, generation uint64) (int, error) {
	log := logger.FromContext(ctx).With("source", source)

	// Window the text
	chunks := u.chunker.Chunk(source, text)
	if len(chunks) == 0 {
		return 0, &domain.ExtractionError{Reason: "document has no text to ingest"}
	}

	// Embed every window; one failure aborts the whole document
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		var embErr *domain.EmbeddingError
		if !errors.As(err, &embErr) {
			err = &domain.EmbeddingError{Attempts: 1, Err: err}
		}
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, &domain.EmbeddingError{Attempts: 1, Err: fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	// Replace the source atomically
	batch := domain.ChunkBatch{Source: source, Chunks: chunks, Generation: generation}
	if err := u.store.Upsert(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", source, err)
	}

	log.Debug("monograph ingested", "chunks", len(chunks))
	return len(chunks), nil
}
