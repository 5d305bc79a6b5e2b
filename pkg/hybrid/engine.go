// Package hybrid ranks nodes by blending three signals: cosine similarity
// between the query and node embeddings, PageRank centrality over the
// graph, and a boost for direct neighbors of the strongest vector matches.
package hybrid

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/liliang-cn/sqgraph/pkg/core"
	"github.com/liliang-cn/sqgraph/pkg/embed"
	"github.com/liliang-cn/sqgraph/pkg/graph"
)

const (
	// DefaultTopK is the result count when none is requested.
	DefaultTopK = 5

	// DefaultMaxDepth bounds multi-hop traversal when none is requested.
	DefaultMaxDepth = 3

	// maxSeeds caps how many top vector matches spread a neighbor boost.
	maxSeeds = 5

	// boostDecay scales a seed's score before it reaches a neighbor, so
	// direct matches still outrank boosted ones.
	boostDecay = 0.5

	// scoreFloor filters noise; candidates at or below it are dropped.
	scoreFloor = 0.01

	prDamping = 0.85
	prMaxIter = 100
	prTol     = 1e-6
)

// Engine runs hybrid and multi-hop queries over a vector index and a graph
// store that share node ids.
type Engine struct {
	vectors  *core.VectorIndex
	graph    *graph.Store
	embedder embed.Embedder
	logger   core.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l core.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an engine over the given stores. A nil embedder falls back to
// the deterministic mock at the index's dimension.
func New(vectors *core.VectorIndex, g *graph.Store, embedder embed.Embedder, opts ...Option) *Engine {
	e := &Engine{
		vectors:  vectors,
		graph:    g,
		embedder: embedder,
		logger:   core.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.embedder == nil {
		e.embedder = embed.NewMock(vectors.Dim())
	}
	return e
}

// SearchOptions tunes one hybrid query. Weights that sum to zero are
// replaced by the 0.6/0.2/0.2 defaults; any other combination is rescaled
// to sum to one. TopK defaults to DefaultTopK.
type SearchOptions struct {
	Alpha float64 // weight of vector similarity
	Beta  float64 // weight of graph centrality
	Gamma float64 // weight of neighbor boost
	TopK  int
}

// Breakdown reports the unweighted per-signal scores behind a result,
// rounded to four decimals.
type Breakdown struct {
	VectorSimilarity float64 `json:"vector_similarity"`
	GraphCentrality  float64 `json:"graph_centrality"`
	NeighborBoost    float64 `json:"neighbor_boost"`
}

// Result is one ranked node. Text longer than 100 characters is truncated
// with a trailing ellipsis.
type Result struct {
	NodeID    string         `json:"node_id"`
	Score     float64        `json:"score"`
	Breakdown Breakdown      `json:"breakdown"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
}

// Search ranks graph nodes for the query text. Every node's final score is
// alpha*vector + beta*centrality + gamma*boost; candidates at or below the
// noise floor are dropped, ties keep insertion order, and at most TopK
// results come back.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("hybrid search: %w: empty query", core.ErrInvalidInput)
	}
	alpha, beta, gamma := resolveWeights(opts.Alpha, opts.Beta, opts.Gamma)
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec := e.embedText(ctx, query)

	hits, err := e.vectors.SearchAll(queryVec)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	vecScores := make(map[string]float64, len(hits))
	seeds := make([]string, 0, maxSeeds)
	for _, hit := range hits {
		if hit.NodeID == "" {
			continue
		}
		if _, ok := vecScores[hit.NodeID]; !ok && len(seeds) < maxSeeds {
			seeds = append(seeds, hit.NodeID)
		}
		vecScores[hit.NodeID] = hit.Score
	}

	topo := e.graph.Snapshot()
	centrality, err := topo.PageRank(prDamping, prMaxIter, prTol)
	if err != nil {
		e.logger.Warn("pagerank did not converge, falling back to degree centrality", "error", err)
		centrality = topo.DegreeCentrality()
	}

	// Neighbors of the strongest matches inherit half the seed's score,
	// surfacing context that does not match the query directly.
	boost := make(map[string]float64)
	for _, seed := range seeds {
		seedScore := vecScores[seed]
		for _, n := range e.graph.Neighbors(seed, nil) {
			if b := seedScore * boostDecay; b > boost[n.TargetID] {
				boost[n.TargetID] = b
			}
		}
	}

	results := make([]Result, 0, topK)
	for _, nodeID := range topo.NodeIDs() {
		vScore := vecScores[nodeID]
		gScore := centrality[nodeID]
		nScore := boost[nodeID]
		total := alpha*vScore + beta*gScore + gamma*nScore
		if total <= scoreFloor {
			continue
		}
		node, ok := e.graph.GetNode(nodeID)
		if !ok {
			continue
		}
		results = append(results, Result{
			NodeID: nodeID,
			Score:  total,
			Breakdown: Breakdown{
				VectorSimilarity: round4(vScore),
				GraphCentrality:  round4(gScore),
				NeighborBoost:    round4(nScore),
			},
			Text:     truncateText(node.Text, 100),
			Metadata: node.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	e.logger.Debug("hybrid search done", "query_len", len(query), "candidates", len(hits), "results", len(results))
	return results, nil
}

// embedText embeds through the configured provider, degrading to the
// deterministic placeholder (with a warning) on failure or a dimension
// mismatch so queries keep working without a model server.
func (e *Engine) embedText(ctx context.Context, text string) []float32 {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, using deterministic fallback", "error", err)
		return embed.Deterministic(text, e.vectors.Dim())
	}
	if len(vec) != e.vectors.Dim() {
		e.logger.Warn("embedder dimension mismatch, using deterministic fallback",
			"got", len(vec), "want", e.vectors.Dim())
		return embed.Deterministic(text, e.vectors.Dim())
	}
	return vec
}

func resolveWeights(alpha, beta, gamma float64) (float64, float64, float64) {
	total := alpha + beta + gamma
	if total == 0 {
		return 0.6, 0.2, 0.2
	}
	return alpha / total, beta / total, gamma / total
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
