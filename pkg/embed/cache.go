package embed

import (
	"context"
	"sync"
)

// Cache memoizes embeddings by exact text so repeated ingests and queries
// skip the provider. The cache is unbounded; it holds one vector per
// distinct text seen.
type Cache struct {
	mu      sync.RWMutex
	inner   Embedder
	vectors map[string][]float32
}

// NewCache wraps an embedder with memoization.
func NewCache(inner Embedder) *Cache {
	return &Cache{
		inner:   inner,
		vectors: make(map[string][]float32),
	}
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	vec, ok := c.vectors[text]
	c.mu.RUnlock()
	if ok {
		return cloneVec(vec), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.vectors[text] = cloneVec(vec)
	c.mu.Unlock()
	return vec, nil
}

func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (c *Cache) Dim() int { return c.inner.Dim() }

// Len reports how many distinct texts are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
