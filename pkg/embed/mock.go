package embed

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// Mock produces deterministic pseudo-embeddings derived from the text
// alone, so the same text always maps to the same vector. Useful for tests
// and for running without a model server.
type Mock struct {
	dim int
}

// NewMock returns a mock embedder of the given dimension.
func NewMock(dim int) *Mock {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Mock{dim: dim}
}

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return Deterministic(text, m.dim), nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *Mock) Dim() int { return m.dim }

// Deterministic derives a unit-length vector from text: an FNV-1a hash of
// the text seeds a PRNG, which fills the vector with Gaussian samples that
// are then L2-normalized. This is also the degradation placeholder when a
// real embedding provider fails.
func Deterministic(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultDim
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, dim)
	norm := 0.0
	for i := range vec {
		v := rng.NormFloat64() * 0.1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
