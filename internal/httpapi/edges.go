package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type edgeCreateRequest struct {
	SourceID string         `json:"source_id" validate:"required"`
	TargetID string         `json:"target_id" validate:"required"`
	EdgeType string         `json:"edge_type"`
	Weight   *float64       `json:"weight" validate:"omitempty,gte=0,lte=1"`
	Metadata map[string]any `json:"metadata"`
}

// weightOrDefault resolves the optional wire weight. An absent field means
// full strength, an explicit zero stays zero.
func (req edgeCreateRequest) weightOrDefault() float64 {
	if req.Weight == nil {
		return 1.0
	}
	return *req.Weight
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	edgeID, err := s.db.Graph().CreateEdge(r.Context(), req.SourceID, req.TargetID, req.EdgeType, req.weightOrDefault(), req.Metadata)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	edge, ok := s.db.Graph().GetEdge(edgeID)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "edge vanished after create")
		return
	}
	s.respondJSON(w, http.StatusOK, edge)
}

func (s *Server) handleGetEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")
	edge, ok := s.db.Graph().GetEdge(edgeID)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("edge %s not found", edgeID))
		return
	}
	s.respondJSON(w, http.StatusOK, edge)
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")

	ok, err := s.db.Graph().DeleteEdge(r.Context(), edgeID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("edge %s not found", edgeID))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("edge %s deleted", edgeID),
	})
}
