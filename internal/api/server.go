// Package api is the HTTP surface: document submission, task polling
// and retrieval over built summarization trees.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liuwen-dev/studyforge/internal/config"
	"github.com/liuwen-dev/studyforge/internal/library"
	"github.com/liuwen-dev/studyforge/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	lib          *library.Library
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, lib *library.Library, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		lib:          lib,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents/process", s.handleProcess)
		r.Get("/api/tasks/{taskID}/status", s.handleTaskStatus)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}/tree", s.handleDocumentTree)
		r.Get("/api/documents/{docID}/node/{nodeID}", s.handleDocumentNode)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Post("/api/query/precise", s.handlePreciseQuery)
		r.Post("/api/generate/materials", s.handleGenerateMaterials)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
