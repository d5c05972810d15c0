package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/tocindex/internal/config"
	"github.com/dgallion1/tocindex/internal/pipeline"
	"github.com/dgallion1/tocindex/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Unpublisher removes a document from the external publish target.
type Unpublisher interface {
	Unpublish(ctx context.Context, docID string) error
}

// Server is the HTTP API server for tocindex.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	unpub        Unpublisher
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. unpub may be nil.
func NewServer(orch *pipeline.Orchestrator, st *store.Store, unpub Unpublisher, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		unpub:        unpub,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/stats/jobs", s.handleJobStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Route("/api/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Get("/summary", s.handleSummary)
			r.Get("/report", s.handleReport)
			r.Get("/unmatched", s.handleUnmatched)

			r.Get("/sections", s.handleSections)
			r.Get("/sections/{sectionID}", s.handleSection)
			r.Get("/sections/{sectionID}/children", s.handleChildren)
			r.Get("/sections/{sectionID}/descendants", s.handleDescendants)
			r.Get("/sections/{sectionID}/path", s.handlePath)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
