package sqgraph

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/liliang-cn/sqgraph/pkg/core"
	"github.com/liliang-cn/sqgraph/pkg/embed"
	"github.com/liliang-cn/sqgraph/pkg/graph"
	"github.com/liliang-cn/sqgraph/pkg/hybrid"
)

// Version of the engine, reported by Status and the HTTP API.
const Version = "1.0.0"

// Config describes where the two stores live and how text is embedded.
type Config struct {
	GraphPath    string              // SQLite file for nodes and edges
	VectorPath   string              // SQLite file for embeddings
	Dimensions   int                 // embedding dimension (default 384)
	SimilarityFn core.SimilarityFunc // similarity measure (default cosine)
	Embedder     embed.Embedder      // text embedder (default deterministic mock)
	Logger       core.Logger         // default discards everything
}

// DefaultConfig places graph.db and vectors.db under dir with cosine
// similarity at the default dimension.
func DefaultConfig(dir string) Config {
	return Config{
		GraphPath:    filepath.Join(dir, "graph.db"),
		VectorPath:   filepath.Join(dir, "vectors.db"),
		Dimensions:   embed.DefaultDim,
		SimilarityFn: core.CosineSimilarity,
	}
}

// DB bundles the vector index, the graph store, the embedder, and the
// hybrid engine behind one handle. Node-level operations keep the two
// stores in sync: a node's text lives in the graph and its embedding in
// the index, tied together by the node id.
type DB struct {
	vectors  *core.VectorIndex
	graph    *graph.Store
	embedder embed.Embedder
	engine   *hybrid.Engine
	logger   core.Logger
}

// Open opens (creating if necessary) both stores and wires the engine.
func Open(ctx context.Context, config Config) (*DB, error) {
	if config.GraphPath == "" || config.VectorPath == "" {
		return nil, fmt.Errorf("open: %w: both store paths are required", core.ErrInvalidInput)
	}
	if config.Dimensions <= 0 {
		config.Dimensions = embed.DefaultDim
	}
	if config.Logger == nil {
		config.Logger = core.NopLogger()
	}
	if config.Embedder == nil {
		config.Embedder = embed.NewCache(embed.NewMock(config.Dimensions))
	}
	if config.Embedder.Dim() != config.Dimensions {
		return nil, fmt.Errorf("open: %w: embedder produces %d dimensions, store configured for %d",
			core.ErrDimensionMismatch, config.Embedder.Dim(), config.Dimensions)
	}

	opts := []core.Option{core.WithLogger(config.Logger)}
	if config.SimilarityFn != nil {
		opts = append(opts, core.WithSimilarity(config.SimilarityFn))
	}
	vectors, err := core.New(ctx, config.VectorPath, config.Dimensions, opts...)
	if err != nil {
		return nil, err
	}

	graphStore, err := graph.New(ctx, config.GraphPath, graph.WithLogger(config.Logger))
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	db := &DB{
		vectors:  vectors,
		graph:    graphStore,
		embedder: config.Embedder,
		logger:   config.Logger,
	}
	db.engine = hybrid.New(vectors, graphStore, config.Embedder, hybrid.WithLogger(config.Logger))
	return db, nil
}

// OpenDefault opens both stores under dir with default settings.
func OpenDefault(ctx context.Context, dir string) (*DB, error) {
	return Open(ctx, DefaultConfig(dir))
}

// Vectors exposes the underlying vector index.
func (db *DB) Vectors() *core.VectorIndex { return db.vectors }

// Graph exposes the underlying graph store.
func (db *DB) Graph() *graph.Store { return db.graph }

// Hybrid exposes the retrieval engine.
func (db *DB) Hybrid() *hybrid.Engine { return db.engine }

// Embedder exposes the configured embedder.
func (db *DB) Embedder() embed.Embedder { return db.embedder }

// Close closes both stores.
func (db *DB) Close() error {
	verr := db.vectors.Close()
	gerr := db.graph.Close()
	if verr != nil {
		return verr
	}
	return gerr
}

// Status summarizes what the engine currently holds.
type Status struct {
	TotalNodes      int    `json:"total_nodes"`
	TotalEdges      int    `json:"total_edges"`
	TotalVectors    int    `json:"total_vectors"`
	VectorDimension int    `json:"vector_dimension"`
	StorageType     string `json:"storage_type"`
	Version         string `json:"version"`
}

// Status reports store sizes and configuration.
func (db *DB) Status() Status {
	return Status{
		TotalNodes:      db.graph.NodeCount(),
		TotalEdges:      db.graph.EdgeCount(),
		TotalVectors:    db.vectors.Count(),
		VectorDimension: db.vectors.Dim(),
		StorageType:     "SQLite + In-Memory",
		Version:         Version,
	}
}
