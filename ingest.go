package sqgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliang-cn/sqgraph/pkg/graph"
)

// IngestNode is one node of a bulk batch. A nil Embedding is generated
// from the text.
type IngestNode struct {
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// IngestEdge is one edge of a bulk batch, referencing node ids that exist
// once the batch's nodes are created.
type IngestEdge struct {
	SourceID string
	TargetID string
	Type     string
	Weight   float64
	Metadata map[string]any
}

// IngestStats reports what a bulk ingest actually did. EdgesSkipped counts
// edges rejected for missing endpoints or invalid weights.
type IngestStats struct {
	NodesCreated int      `json:"nodes_created"`
	EdgesCreated int      `json:"edges_created"`
	EdgesSkipped int      `json:"edges_skipped"`
	NodeIDs      []string `json:"node_ids"`
}

// Ingest creates nodes first, then edges. Edges with unknown endpoints or
// out-of-range weights are skipped and counted rather than failing the
// batch; storage errors abort it. The batch is not atomic: on error the
// returned stats describe what was already committed.
func (db *DB) Ingest(ctx context.Context, nodes []IngestNode, edges []IngestEdge) (*IngestStats, error) {
	stats := &IngestStats{NodeIDs: make([]string, 0, len(nodes))}

	for i, n := range nodes {
		view, err := db.CreateNode(ctx, n.Text, n.Metadata, n.Embedding)
		if err != nil {
			return stats, fmt.Errorf("ingest node %d: %w", i, err)
		}
		stats.NodesCreated++
		stats.NodeIDs = append(stats.NodeIDs, view.Node.ID)
	}

	for i, e := range edges {
		_, err := db.graph.CreateEdge(ctx, e.SourceID, e.TargetID, e.Type, e.Weight, e.Metadata)
		switch {
		case err == nil:
			stats.EdgesCreated++
		case errors.Is(err, graph.ErrEndpointNotFound) || errors.Is(err, graph.ErrInvalidWeight):
			stats.EdgesSkipped++
			db.logger.Warn("skipping invalid edge in bulk ingest", "index", i, "error", err)
		default:
			return stats, fmt.Errorf("ingest edge %d: %w", i, err)
		}
	}

	db.logger.Info("bulk ingest done",
		"nodes_created", stats.NodesCreated,
		"edges_created", stats.EdgesCreated,
		"edges_skipped", stats.EdgesSkipped)
	return stats, nil
}
