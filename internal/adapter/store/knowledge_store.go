package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"nhp/internal/adapter/similarity"
	"nhp/internal/domain"
)

var (
	bucketChunks = []byte("chunks")
	bucketDocs   = []byte("docs")
	bucketMeta   = []byte("meta")
)

const keySep = 0x00

// BoltKnowledgeStore persists monograph chunks in BoltDB and serves similarity
// queries from an in-memory copy. Writers are serialized; readers never block on
// a bbolt transaction.
type BoltKnowledgeStore struct {
	db        *bbolt.DB
	model     string
	dimension int

	writeMu sync.Mutex

	mu         sync.RWMutex
	chunks     map[string][]similarity.Candidate
	generation uint64
}

type storedChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"v"`
	Seq       int       `json:"seq"`
}

type docMeta struct {
	Order      uint64 `json:"order"`
	Chunks     int    `json:"chunks"`
	IngestedAt int64  `json:"ingested_at"`
}

// DocumentInfo describes one indexed source document.
type DocumentInfo struct {
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// NewBoltKnowledgeStore opens the store at path for embeddings of the given model and dimension.
func NewBoltKnowledgeStore(path, model string, dimension int) (*BoltKnowledgeStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketDocs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return initSchema(tx)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltKnowledgeStore{
		db:        db,
		model:     model,
		dimension: dimension,
		chunks:    make(map[string][]similarity.Candidate),
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	return s, nil
}

// load reads every chunk into memory.
func (s *BoltKnowledgeStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		s.generation = readGeneration(tx)

		orders := make(map[string]uint64)
		err := tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return nil // skip corrupted entries
			}
			orders[string(k)] = meta.Order
			return nil
		})
		if err != nil {
			return err
		}

		err = tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			source, ok := sourceFromKey(k)
			if !ok {
				return nil
			}
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil
			}
			s.chunks[source] = append(s.chunks[source], similarity.Candidate{
				Chunk: domain.MonographChunk{
					ID:            stored.ID,
					Source:        source,
					Text:          stored.Text,
					Embedding:     stored.Embedding,
					SequenceIndex: stored.Seq,
				},
				DocOrder: orders[source],
			})
			return nil
		})
		if err != nil {
			return err
		}

		for source := range s.chunks {
			sortBySequence(s.chunks[source])
		}
		return nil
	})
}

// Upsert replaces the chunk set of batch.Source in a single transaction.
func (s *BoltKnowledgeStore) Upsert(ctx context.Context, batch domain.ChunkBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Source == "" {
		return fmt.Errorf("chunk batch has no source")
	}
	if len(batch.Chunks) == 0 {
		return fmt.Errorf("chunk batch for %s is empty", batch.Source)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if batch.Generation != 0 && batch.Generation != s.Generation() {
		return domain.ErrStaleBatch
	}

	candidates := make([]similarity.Candidate, len(batch.Chunks))
	for i, c := range batch.Chunks {
		if s.dimension > 0 && len(c.Embedding) != s.dimension {
			return fmt.Errorf("%w: expected dimension %d, got %d", domain.ErrEmbeddingMismatch, s.dimension, len(c.Embedding))
		}
		c.Source = batch.Source
		c.Embedding = similarity.Normalize(c.Embedding)
		candidates[i] = similarity.Candidate{Chunk: c}
	}
	sortBySequence(candidates)

	var order uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		if err := deletePrefix(chunks, sourcePrefix(batch.Source)); err != nil {
			return err
		}

		for _, c := range candidates {
			data, err := json.Marshal(storedChunk{
				ID:        c.Chunk.ID,
				Text:      c.Chunk.Text,
				Embedding: c.Chunk.Embedding,
				Seq:       c.Chunk.SequenceIndex,
			})
			if err != nil {
				return err
			}
			if err := chunks.Put(chunkKey(batch.Source, c.Chunk.SequenceIndex), data); err != nil {
				return err
			}
		}

		docs := tx.Bucket(bucketDocs)
		var meta docMeta
		if existing := docs.Get([]byte(batch.Source)); existing != nil {
			if err := json.Unmarshal(existing, &meta); err != nil {
				return fmt.Errorf("corrupt document entry for %s: %w", batch.Source, err)
			}
		} else {
			seq, err := docs.NextSequence()
			if err != nil {
				return err
			}
			meta.Order = seq
		}
		meta.Chunks = len(candidates)
		meta.IngestedAt = time.Now().Unix()
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		order = meta.Order
		if err := docs.Put([]byte(batch.Source), data); err != nil {
			return err
		}

		return writeFingerprint(tx, s.model, s.dimension)
	})
	if err != nil {
		return fmt.Errorf("failed to write chunks for %s: %w", batch.Source, err)
	}

	for i := range candidates {
		candidates[i].DocOrder = order
	}

	s.mu.Lock()
	s.chunks[batch.Source] = candidates
	s.mu.Unlock()

	return nil
}

// Query returns up to topK chunks ranked by cosine similarity to embedding.
func (s *BoltKnowledgeStore) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, store dimension %d", domain.ErrEmbeddingMismatch, len(embedding), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []similarity.Candidate
	for _, candidates := range s.chunks {
		all = append(all, candidates...)
	}

	return similarity.Rank(similarity.Normalize(embedding), all, topK), nil
}

// Reset drops every chunk and document in one transaction and advances the generation.
func (s *BoltKnowledgeStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var next uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketDocs} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		next = readGeneration(tx) + 1
		if err := writeGeneration(tx, next); err != nil {
			return err
		}
		return clearFingerprint(tx)
	})
	if err != nil {
		return fmt.Errorf("failed to reset knowledge base: %w", err)
	}

	s.mu.Lock()
	s.chunks = make(map[string][]similarity.Candidate)
	s.generation = next
	s.mu.Unlock()

	return nil
}

// DeleteDocument removes every chunk of source.
func (s *BoltKnowledgeStore) DeleteDocument(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		if docs.Get([]byte(source)) == nil {
			return fmt.Errorf("document %s: %w", source, domain.ErrNotFound)
		}
		if err := deletePrefix(tx.Bucket(bucketChunks), sourcePrefix(source)); err != nil {
			return err
		}
		return docs.Delete([]byte(source))
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.chunks, source)
	s.mu.Unlock()

	return nil
}

// CountDocuments returns the number of distinct source documents.
func (s *BoltKnowledgeStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *BoltKnowledgeStore) CountChunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}

// Documents lists indexed documents in insertion order.
func (s *BoltKnowledgeStore) Documents(ctx context.Context) ([]DocumentInfo, error) {
	type entry struct {
		info  DocumentInfo
		order uint64
	}
	var entries []entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			entries = append(entries, entry{
				info: DocumentInfo{
					Source:     string(k),
					Chunks:     meta.Chunks,
					IngestedAt: time.Unix(meta.IngestedAt, 0),
				},
				order: meta.Order,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	docs := make([]DocumentInfo, len(entries))
	for i, e := range entries {
		docs[i] = e.info
	}
	return docs, nil
}

func (s *BoltKnowledgeStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *BoltKnowledgeStore) Close() error {
	return s.db.Close()
}

func sourcePrefix(source string) []byte {
	return append([]byte(source), keySep)
}

func chunkKey(source string, seq int) []byte {
	return append(sourcePrefix(source), []byte(fmt.Sprintf("%08d", seq))...)
}

func sourceFromKey(k []byte) (string, bool) {
	i := bytes.LastIndexByte(k, keySep)
	if i < 0 {
		return "", false
	}
	return string(k[:i]), true
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) error {
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func sortBySequence(c []similarity.Candidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].Chunk.SequenceIndex < c[j].Chunk.SequenceIndex })
}
