package embed

import (
	"fmt"
	"os"
	"strconv"
)

// Config selects and parameterizes an embedding provider.
type Config struct {
	Provider string // "mock" or "ollama"
	BaseURL  string
	Model    string
	Dim      int
}

// FromConfig builds the configured provider, wrapped in a Cache.
func FromConfig(cfg Config) (Embedder, error) {
	if cfg.Dim <= 0 {
		cfg.Dim = DefaultDim
	}
	switch cfg.Provider {
	case "mock", "":
		return NewCache(NewMock(cfg.Dim)), nil
	case "ollama":
		return NewCache(NewOllama(cfg.BaseURL, cfg.Model, cfg.Dim)), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
}

// FromEnv builds a provider from SQGRAPH_EMBEDDER, SQGRAPH_OLLAMA_URL,
// SQGRAPH_OLLAMA_MODEL, and SQGRAPH_DIM. With nothing set it returns a
// cached mock embedder at the default dimension.
func FromEnv() (Embedder, error) {
	dim := DefaultDim
	if raw := os.Getenv("SQGRAPH_DIM"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid SQGRAPH_DIM %q", raw)
		}
		dim = parsed
	}
	return FromConfig(Config{
		Provider: os.Getenv("SQGRAPH_EMBEDDER"),
		BaseURL:  os.Getenv("SQGRAPH_OLLAMA_URL"),
		Model:    os.Getenv("SQGRAPH_OLLAMA_MODEL"),
		Dim:      dim,
	})
}
