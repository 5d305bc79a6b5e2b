package core

import "math"

// SimilarityFunc scores a pair of vectors. Higher means more similar.
type SimilarityFunc func(a, b []float32) float64

// Built-in similarity functions.
var (
	// CosineSimilarity is the default scoring function.
	CosineSimilarity SimilarityFunc = cosineSimilarity

	// DotProduct scores by raw inner product.
	DotProduct SimilarityFunc = dotProduct

	// EuclideanDist scores by negated euclidean distance, so that higher
	// still means closer.
	EuclideanDist SimilarityFunc = euclideanDistance
)

// cosineSimilarity returns dot(a,b) / (|a|*|b|), in [-1, 1].
// Mismatched lengths and zero-magnitude vectors score exactly 0.0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return -math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return -math.Sqrt(sum)
}
