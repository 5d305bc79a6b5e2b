package httpapi

import (
	"net/http"

	"github.com/liliang-cn/sqgraph"
)

type bulkIngestRequest struct {
	Nodes []nodeCreateRequest `json:"nodes" validate:"omitempty,dive"`
	Edges []edgeCreateRequest `json:"edges" validate:"omitempty,dive"`
}

type bulkIngestResponse struct {
	Status string `json:"status"`
	sqgraph.IngestStats
}

func (s *Server) handleBulkIngest(w http.ResponseWriter, r *http.Request) {
	var req bulkIngestRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	nodes := make([]sqgraph.IngestNode, 0, len(req.Nodes))
	for _, n := range req.Nodes {
		nodes = append(nodes, sqgraph.IngestNode{
			Text:      n.Text,
			Metadata:  n.Metadata,
			Embedding: n.Embedding,
		})
	}
	edges := make([]sqgraph.IngestEdge, 0, len(req.Edges))
	for _, e := range req.Edges {
		edges = append(edges, sqgraph.IngestEdge{
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.EdgeType,
			Weight:   e.weightOrDefault(),
			Metadata: e.Metadata,
		})
	}

	stats, err := s.db.Ingest(r.Context(), nodes, edges)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, bulkIngestResponse{Status: "success", IngestStats: *stats})
}
