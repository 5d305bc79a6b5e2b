package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liliang-cn/sqgraph"
)

type nodeCreateRequest struct {
	Text      string         `json:"text" validate:"required"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

type nodeUpdateRequest struct {
	Text     *string        `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type nodeResponse struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Edges     []string       `json:"edges"`
}

// newNodeResponse flattens a NodeView for the wire. The embedding is only
// echoed back on create; reads leave it out to keep payloads small.
func newNodeResponse(view *sqgraph.NodeView, withEmbedding bool) nodeResponse {
	resp := nodeResponse{
		ID:        view.Node.ID,
		Text:      view.Node.Text,
		Metadata:  view.Node.Metadata,
		CreatedAt: view.Node.CreatedAt,
		UpdatedAt: view.Node.UpdatedAt,
		Edges:     view.EdgeIDs,
	}
	if withEmbedding {
		resp.Embedding = view.Embedding
	}
	if resp.Edges == nil {
		resp.Edges = []string{}
	}
	return resp
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := s.db.CreateNode(r.Context(), req.Text, req.Metadata, req.Embedding)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newNodeResponse(view, true))
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	view, ok := s.db.Node(nodeID)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("node %s not found", nodeID))
		return
	}
	s.respondJSON(w, http.StatusOK, newNodeResponse(view, false))
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var req nodeUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	view, ok, err := s.db.UpdateNode(r.Context(), nodeID, req.Text, req.Metadata)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("node %s not found", nodeID))
		return
	}
	s.respondJSON(w, http.StatusOK, newNodeResponse(view, false))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	ok, err := s.db.DeleteNode(r.Context(), nodeID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("node %s not found", nodeID))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("node %s deleted", nodeID),
	})
}
