package retrieval

import (
	"math"
	"sort"

	"github.com/sidenote-ai/sidenote/types"
)

// CosineSimilarity computes the cosine similarity between two embedding
// vectors, from -1.0 (opposite) to 1.0 (identical direction). Text
// embeddings typically score between 0.0 and 1.0.
//
// Returns 0.0 if the vectors differ in length, are empty, or have zero
// magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match pairs a chunk with its similarity score for one query.
type Match struct {
	Chunk types.DocumentChunk
	Score float64
}

// Index is an in-memory similarity index over embedded document chunks.
// It is immutable after construction and safe for concurrent searches.
type Index struct {
	chunks []types.DocumentChunk
}

// NewIndex builds an index from embedded chunks. Chunks without an
// embedding are kept but never match.
func NewIndex(chunks []types.DocumentChunk) *Index {
	return &Index{chunks: chunks}
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Chunks returns the indexed chunks. Callers must not mutate them.
func (idx *Index) Chunks() []types.DocumentChunk { return idx.chunks }

// Merge combines two indexes into a new one.
func Merge(a, b *Index) *Index {
	if a == nil || a.Len() == 0 {
		return b
	}
	if b == nil || b.Len() == 0 {
		return a
	}
	merged := make([]types.DocumentChunk, 0, a.Len()+b.Len())
	merged = append(merged, a.chunks...)
	merged = append(merged, b.chunks...)
	return NewIndex(merged)
}

// Search returns up to k chunks scoring at least minScore against the
// query embedding, best first. Chunks whose IDs appear in exclude are
// skipped entirely.
func (idx *Index) Search(query []float32, k int, minScore float64, exclude map[string]struct{}) []Match {
	if len(query) == 0 || k <= 0 {
		return nil
	}

	var matches []Match
	for _, chunk := range idx.chunks {
		if _, skip := exclude[chunk.ID]; skip {
			continue
		}
		if len(chunk.Embedding) == 0 {
			continue
		}
		score := CosineSimilarity(query, chunk.Embedding)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Chunk: chunk, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
