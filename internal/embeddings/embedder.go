// Package embeddings turns text into vectors for similarity search.
package embeddings

import (
	"context"
	"math"
)

// Embedder defines the interface for generating text embeddings.
// The same Embedder must be used for the corpus and for queries so that
// vectors live in one space.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NormalizeL2 scales the vector to unit length in place.
// It reports false when the vector has zero magnitude and was left untouched.
func NormalizeL2(vector []float32) bool {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return false
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
	return true
}

// Dot returns the dot product of two vectors of equal length.
// For unit vectors this is their cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
