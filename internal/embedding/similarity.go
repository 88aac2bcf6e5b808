package embedding

import "math"

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [0, 1]. Mismatched lengths, empty vectors and zero vectors
// yield 0. For any non-zero vector a, CosineSimilarity(a, a) == 1.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
