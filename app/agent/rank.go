package agent

import (
	"math"
	"sort"

	"mindvault/types"
)

// CosineSimilarity returns dot(a,b)/(|a|*|b|). Vectors of different
// length and zero-magnitude vectors score 0 so they rank last instead
// of faulting or producing NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every candidate against the query vector and returns the
// top k, descending by similarity. A full linear scan is enough for
// per-session corpora. The sort is stable: equal scores keep their
// input order, so re-ranking the same set is deterministic.
func Rank(query []float32, chunks []types.Chunk, k int) []types.ScoredChunk {
	scored := make([]types.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, types.ScoredChunk{
			Chunk:      c,
			Similarity: CosineSimilarity(query, c.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
