package memstore

import (
	"context"
	"fmt"
	"sync"

	"nhp/internal/adapter/similarity"
	"nhp/internal/domain"
)

// MemoryStore is a non-persistent knowledge store with the same ordering and
// reset semantics as the BoltDB store.
type MemoryStore struct {
	mu         sync.RWMutex
	chunks     map[string][]similarity.Candidate
	docOrder   map[string]uint64
	nextOrder  uint64
	generation uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:     make(map[string][]similarity.Candidate),
		docOrder:   make(map[string]uint64),
		generation: 1,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, batch domain.ChunkBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch.Chunks) == 0 {
		return fmt.Errorf("chunk batch for %s is empty", batch.Source)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.Generation != 0 && batch.Generation != s.generation {
		return domain.ErrStaleBatch
	}

	order, ok := s.docOrder[batch.Source]
	if !ok {
		s.nextOrder++
		order = s.nextOrder
		s.docOrder[batch.Source] = order
	}

	candidates := make([]similarity.Candidate, len(batch.Chunks))
	for i, c := range batch.Chunks {
		c.Source = batch.Source
		c.Embedding = similarity.Normalize(c.Embedding)
		candidates[i] = similarity.Candidate{Chunk: c, DocOrder: order}
	}
	s.chunks[batch.Source] = candidates
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []similarity.Candidate
	for _, c := range s.chunks {
		all = append(all, c...)
	}
	return similarity.Rank(similarity.Normalize(embedding), all, topK), nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string][]similarity.Candidate)
	s.docOrder = make(map[string]uint64)
	s.generation++
	return nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[source]; !ok {
		return fmt.Errorf("document %s: %w", source, domain.ErrNotFound)
	}
	delete(s.chunks, source)
	delete(s.docOrder, source)
	return nil
}

func (s *MemoryStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
