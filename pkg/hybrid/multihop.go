package hybrid

import (
	"context"
	"fmt"
	"sort"

	"github.com/liliang-cn/sqgraph/pkg/core"
	"github.com/liliang-cn/sqgraph/pkg/graph"
)

const (
	relevanceWeight = 0.7
	decayWeight     = 0.3
)

// MultiHopOptions tunes one multi-hop query. TopK defaults to DefaultTopK
// and MaxDepth to DefaultMaxDepth.
type MultiHopOptions struct {
	TopK     int
	MaxDepth int
}

// PathResult is one node reached by multi-hop reasoning, with the path
// that reached it and the blended relevance/proximity score it earned.
type PathResult struct {
	NodeID    string         `json:"node_id"`
	Text      string         `json:"node_text"`
	Relevance float64        `json:"relevance_score"`
	Distance  int            `json:"distance"`
	Path      []string       `json:"path"`
	EdgeTypes []string       `json:"edge_types"`
	Combined  float64        `json:"combined_score"`
	Metadata  map[string]any `json:"metadata"`
}

// ToResult reshapes a path result into the hybrid Result form: the
// combined score becomes the score, relevance fills the vector slot, and
// proximity 1/(1+distance) stands in for centrality.
func (p PathResult) ToResult() Result {
	return Result{
		NodeID: p.NodeID,
		Score:  p.Combined,
		Breakdown: Breakdown{
			VectorSimilarity: p.Relevance,
			GraphCentrality:  1.0 / (1.0 + float64(p.Distance)),
			NeighborBoost:    0,
		},
		Text:     p.Text,
		Metadata: p.Metadata,
	}
}

// MultiHop starts from the best vector match for the query and walks the
// graph breadth-first from there, scoring each reached node by
// 0.7*relevance + 0.3*proximity. Relevance is 1.0 at the start node and
// cosine similarity between the query and the node's text elsewhere;
// proximity decays as 1/(1+distance). An empty index yields no results.
func (e *Engine) MultiHop(ctx context.Context, query string, opts MultiHopOptions) ([]PathResult, error) {
	if query == "" {
		return nil, fmt.Errorf("multi-hop: %w: empty query", core.ErrInvalidInput)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}

	queryVec := e.embedText(ctx, query)

	hits, err := e.vectors.SearchAll(queryVec)
	if err != nil {
		return nil, fmt.Errorf("multi-hop: %w", err)
	}
	if len(hits) == 0 || hits[0].NodeID == "" {
		return []PathResult{}, nil
	}
	start := hits[0].NodeID

	visited := e.graph.TraverseBFS(start, depth, nil)

	type entry struct {
		id    string
		visit graph.Visit
	}
	ordered := make([]entry, 0, len(visited))
	for id, visit := range visited {
		ordered = append(ordered, entry{id: id, visit: visit})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].visit.Order < ordered[j].visit.Order
	})

	results := make([]PathResult, 0, len(ordered))
	for _, item := range ordered {
		node, ok := e.graph.GetNode(item.id)
		if !ok {
			continue
		}

		relevance := 1.0
		if item.visit.Distance > 0 {
			relevance = core.CosineSimilarity(queryVec, e.embedText(ctx, node.Text))
		}
		decay := 1.0 / (1.0 + float64(item.visit.Distance))

		results = append(results, PathResult{
			NodeID:    item.id,
			Text:      node.Text,
			Relevance: relevance,
			Distance:  item.visit.Distance,
			Path:      item.visit.Path,
			EdgeTypes: item.visit.EdgeTypes,
			Combined:  relevanceWeight*relevance + decayWeight*decay,
			Metadata:  node.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Combined > results[j].Combined
	})
	if len(results) > topK {
		results = results[:topK]
	}

	e.logger.Debug("multi-hop done", "start", start, "visited", len(visited), "results", len(results))
	return results, nil
}
