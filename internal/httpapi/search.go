package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/liliang-cn/sqgraph/pkg/graph"
	"github.com/liliang-cn/sqgraph/pkg/hybrid"
)

type vectorSearchRequest struct {
	QueryText string `json:"query_text" validate:"required"`
	TopK      int    `json:"top_k" validate:"omitempty,gte=1,lte=100"`
}

type hybridSearchRequest struct {
	Query string   `json:"query" validate:"required"`
	Alpha *float64 `json:"alpha" validate:"omitempty,gte=0,lte=1"`
	Beta  *float64 `json:"beta" validate:"omitempty,gte=0,lte=1"`
	Gamma *float64 `json:"gamma" validate:"omitempty,gte=0,lte=1"`
	TopK  int      `json:"top_k" validate:"omitempty,gte=1,lte=100"`
}

type traversalResult struct {
	NodeID    string         `json:"node_id"`
	NodeText  string         `json:"node_text"`
	Distance  int            `json:"distance"`
	Path      []string       `json:"path"`
	EdgeTypes []string       `json:"edge_types"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	var req vectorSearchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if req.TopK == 0 {
		req.TopK = 10
	}

	results, err := s.db.SearchText(r.Context(), req.QueryText, req.TopK)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleGraphTraversal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startID := q.Get("start_id")
	if startID == "" {
		s.respondError(w, http.StatusBadRequest, "start_id is required")
		return
	}

	depth, ok := s.queryInt(w, q.Get("depth"), "depth", 2, 1, 10)
	if !ok {
		return
	}

	var edgeTypes []string
	if raw := q.Get("edge_types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				edgeTypes = append(edgeTypes, part)
			}
		}
	}

	gs := s.db.Graph()
	if _, found := gs.GetNode(startID); !found {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("start node %s not found", startID))
		return
	}

	visited := gs.TraverseBFS(startID, depth, edgeTypes)

	type entry struct {
		id    string
		visit graph.Visit
	}
	entries := make([]entry, 0, len(visited))
	for id, v := range visited {
		entries = append(entries, entry{id: id, visit: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].visit.Order < entries[j].visit.Order })

	results := make([]traversalResult, 0, len(entries))
	for _, e := range entries {
		node, found := gs.GetNode(e.id)
		if !found {
			continue
		}
		results = append(results, traversalResult{
			NodeID:    e.id,
			NodeText:  node.Text,
			Distance:  e.visit.Distance,
			Path:      e.visit.Path,
			EdgeTypes: e.visit.EdgeTypes,
			Metadata:  node.Metadata,
		})
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleHybridSearch(w http.ResponseWriter, r *http.Request) {
	var req hybridSearchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	opts := hybrid.SearchOptions{Alpha: 0.6, Beta: 0.2, Gamma: 0.2, TopK: req.TopK}
	if req.Alpha != nil {
		opts.Alpha = *req.Alpha
	}
	if req.Beta != nil {
		opts.Beta = *req.Beta
	}
	if req.Gamma != nil {
		opts.Gamma = *req.Gamma
	}

	results, err := s.db.Hybrid().Search(r.Context(), req.Query, opts)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleMultiHopSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	queryText := q.Get("query_text")
	if queryText == "" {
		s.respondError(w, http.StatusBadRequest, "query_text is required")
		return
	}

	topK, ok := s.queryInt(w, q.Get("top_k"), "top_k", 5, 1, 100)
	if !ok {
		return
	}
	depth, ok := s.queryInt(w, q.Get("depth"), "depth", 3, 1, 10)
	if !ok {
		return
	}

	paths, err := s.db.Hybrid().MultiHop(r.Context(), queryText, hybrid.MultiHopOptions{TopK: topK, MaxDepth: depth})
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	// The wire shape matches /search/hybrid so clients can treat both
	// endpoints uniformly; the path detail stays a library-level concern.
	results := make([]hybrid.Result, 0, len(paths))
	for _, p := range paths {
		results = append(results, p.ToResult())
	}
	s.respondJSON(w, http.StatusOK, results)
}

// queryInt parses an optional integer query parameter, enforcing bounds.
// On a bad value it writes the 400 itself and reports false.
func (s *Server) queryInt(w http.ResponseWriter, raw, name string, def, min, max int) (int, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer between %d and %d", name, min, max))
		return 0, false
	}
	return v, true
}
