package embed

import (
	"context"
	"errors"
)

// DefaultDim is the embedding dimension used when none is configured.
const DefaultDim = 384

// Embedder converts text into fixed-dimension vectors. Implement this to
// plug any embedding model (Ollama, OpenAI, local) into the engine.
type Embedder interface {
	// Embed converts a single text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts into vectors in a single call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the dimension of vectors produced by this embedder.
	Dim() int
}

var (
	// ErrEmptyText is returned when an empty text string is provided.
	ErrEmptyText = errors.New("embed: empty text provided")

	// ErrEmbeddingFailed is returned when the provider fails to produce
	// a vector. Callers may degrade to Deterministic instead of failing.
	ErrEmbeddingFailed = errors.New("embed: embedding failed")
)
