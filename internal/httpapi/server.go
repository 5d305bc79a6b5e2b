// Package httpapi exposes the sqgraph engine over HTTP/JSON.
//
// The surface mirrors the storage layers underneath: CRUD on nodes and
// edges, vector / graph / hybrid / multi-hop search, bulk ingest, and a
// status endpoint. All handlers are thin adapters over sqgraph.DB.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/liliang-cn/sqgraph"
)

// Server wires the engine into an HTTP router.
type Server struct {
	db       *sqgraph.DB
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer creates a Server backed by the given database handle.
func NewServer(db *sqgraph.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		db:       db,
		logger:   logger,
		validate: validator.New(),
	}
}

// Routes builds the full route table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Route("/nodes", func(r chi.Router) {
		r.Post("/", s.handleCreateNode)
		r.Get("/{nodeID}", s.handleGetNode)
		r.Put("/{nodeID}", s.handleUpdateNode)
		r.Delete("/{nodeID}", s.handleDeleteNode)
	})

	r.Route("/edges", func(r chi.Router) {
		r.Post("/", s.handleCreateEdge)
		r.Get("/{edgeID}", s.handleGetEdge)
		r.Delete("/{edgeID}", s.handleDeleteEdge)
	})

	r.Route("/search", func(r chi.Router) {
		r.Post("/vector", s.handleVectorSearch)
		r.Get("/graph", s.handleGraphTraversal)
		r.Post("/hybrid", s.handleHybridSearch)
		r.Post("/multihop", s.handleMultiHopSearch)
	})

	r.Post("/bulk/ingest", s.handleBulkIngest)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Vector + Graph Native Database API",
		"version": sqgraph.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.db.Status())
}
