package sqgraph

import (
	"context"
	"fmt"

	"github.com/liliang-cn/sqgraph/pkg/core"
	"github.com/liliang-cn/sqgraph/pkg/embed"
	"github.com/liliang-cn/sqgraph/pkg/graph"
	"github.com/liliang-cn/sqgraph/pkg/hybrid"
)

// NodeView is a node together with its outgoing edge ids. Embedding is only
// populated by CreateNode; reads leave it nil.
type NodeView struct {
	Node      *graph.Node
	EdgeIDs   []string
	Embedding []float32
}

// CreateNode stores a node and its embedding under one id. When embedding
// is nil the text is embedded with the configured provider; a provided
// embedding is used as-is and must match the index dimension. If indexing
// the vector fails the node is rolled back, so the stores stay in sync.
func (db *DB) CreateNode(ctx context.Context, text string, metadata map[string]any, embedding []float32) (*NodeView, error) {
	if text == "" {
		return nil, fmt.Errorf("create node: %w: empty text", core.ErrInvalidInput)
	}

	vec := embedding
	if vec == nil {
		vec = db.embedText(ctx, text)
	}

	nodeID, err := db.graph.CreateNode(ctx, text, metadata)
	if err != nil {
		return nil, err
	}
	if _, err := db.vectors.Add(ctx, nodeID, vec, nil); err != nil {
		if _, derr := db.graph.DeleteNode(ctx, nodeID); derr != nil {
			db.logger.Error("rollback of node after failed vector add also failed",
				"node_id", nodeID, "error", derr)
		}
		return nil, err
	}

	node, _ := db.graph.GetNode(nodeID)
	return &NodeView{Node: node, EdgeIDs: []string{}, Embedding: vec}, nil
}

// Node returns a node with its outgoing edge ids, or false when unknown.
func (db *DB) Node(id string) (*NodeView, bool) {
	node, ok := db.graph.GetNode(id)
	if !ok {
		return nil, false
	}
	return &NodeView{Node: node, EdgeIDs: db.graph.OutgoingEdgeIDs(id)}, true
}

// UpdateNode applies the given fields to a node; a non-nil text also
// re-embeds it and refreshes the stored vector. Reports false when the id
// is unknown.
func (db *DB) UpdateNode(ctx context.Context, id string, text *string, metadata map[string]any) (*NodeView, bool, error) {
	ok, err := db.graph.UpdateNode(ctx, id, text, metadata)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if text != nil {
		vec := db.embedText(ctx, *text)
		if vecID, found := db.vectors.FindByNode(id); found {
			if _, err := db.vectors.Update(ctx, vecID, vec, nil); err != nil {
				return nil, false, err
			}
		}
	}

	view, _ := db.Node(id)
	return view, true, nil
}

// DeleteNode removes a node, its edges, and its vector. Reports false when
// the id is unknown.
func (db *DB) DeleteNode(ctx context.Context, id string) (bool, error) {
	if vecID, found := db.vectors.FindByNode(id); found {
		if _, err := db.vectors.Delete(ctx, vecID); err != nil {
			return false, err
		}
	}
	return db.graph.DeleteNode(ctx, id)
}

// TextSearchResult pairs a vector hit with the matching node's text.
type TextSearchResult struct {
	NodeID   string         `json:"node_id"`
	Text     string         `json:"node_text"`
	Score    float64        `json:"similarity_score"`
	Metadata map[string]any `json:"metadata"`
}

// SearchText embeds the query and returns the topK nearest nodes. Vectors
// whose node no longer exists in the graph are skipped, so fewer than topK
// results may come back.
func (db *DB) SearchText(ctx context.Context, query string, topK int) ([]TextSearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search: %w: empty query", core.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = hybrid.DefaultTopK
	}

	hits, err := db.vectors.Search(db.embedText(ctx, query), topK)
	if err != nil {
		return nil, err
	}

	results := make([]TextSearchResult, 0, len(hits))
	for _, hit := range hits {
		node, ok := db.graph.GetNode(hit.NodeID)
		if !ok {
			continue
		}
		results = append(results, TextSearchResult{
			NodeID:   hit.NodeID,
			Text:     node.Text,
			Score:    hit.Score,
			Metadata: node.Metadata,
		})
	}
	return results, nil
}

// embedText embeds through the configured provider, degrading to the
// deterministic placeholder with a warning on failure.
func (db *DB) embedText(ctx context.Context, text string) []float32 {
	vec, err := db.embedder.Embed(ctx, text)
	if err != nil {
		db.logger.Warn("embedding failed, using deterministic fallback", "error", err)
		return embed.Deterministic(text, db.vectors.Dim())
	}
	if len(vec) != db.vectors.Dim() {
		db.logger.Warn("embedder dimension mismatch, using deterministic fallback",
			"got", len(vec), "want", db.vectors.Dim())
		return embed.Deterministic(text, db.vectors.Dim())
	}
	return vec
}
