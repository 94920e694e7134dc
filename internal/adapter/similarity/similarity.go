package similarity

import (
	"math"
	"sort"

	"nhp/internal/domain"
)

// Candidate is a stored chunk together with the insertion order of its source document.
type Candidate struct {
	Chunk    domain.MonographChunk
	DocOrder uint64
}

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine calculates the cosine similarity between two vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every candidate against query and returns the best topK.
// Order: similarity desc, sequence index asc, document insertion order asc, ID asc.
func Rank(query []float32, candidates []Candidate, topK int) []domain.ScoredChunk {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	type scored struct {
		candidate Candidate
		score     float64
	}

	scores := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Chunk.Embedding)
		// NaN compares false both ways and would break the sort order.
		if math.IsNaN(score) {
			score = -1
		}
		scores = append(scores, scored{candidate: c, score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.candidate.Chunk.SequenceIndex != b.candidate.Chunk.SequenceIndex {
			return a.candidate.Chunk.SequenceIndex < b.candidate.Chunk.SequenceIndex
		}
		if a.candidate.DocOrder != b.candidate.DocOrder {
			return a.candidate.DocOrder < b.candidate.DocOrder
		}
		return a.candidate.Chunk.ID < b.candidate.Chunk.ID
	})

	if topK > len(scores) {
		topK = len(scores)
	}

	results := make([]domain.ScoredChunk, topK)
	for i := 0; i < topK; i++ {
		results[i] = domain.ScoredChunk{
			Chunk:      scores[i].candidate.Chunk,
			Similarity: scores[i].score,
		}
	}
	return results
}
