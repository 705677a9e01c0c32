package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/sectionrank/internal/config"
	"github.com/dgallion1/sectionrank/internal/llm"
	"github.com/dgallion1/sectionrank/internal/metrics"
	"github.com/dgallion1/sectionrank/internal/outline"
	"github.com/dgallion1/sectionrank/internal/parser"
	"github.com/dgallion1/sectionrank/internal/pipeline"
)

// Models names the model used for each stage, for reporting.
type Models struct {
	Rank   string `json:"rank"`
	Refine string `json:"refine"`
}

// Server is the HTTP API server for sectionrank.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	stats        *llm.LLMStats
	models       Models
	library      parser.DirSource
	outlines     *outline.Loader
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, stats *llm.LLMStats, models Models, log *slog.Logger, cfg config.Config) *Server {
	library := parser.DirSource{
		Dir:     cfg.LibraryDir,
		Options: parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
	}
	s := &Server{
		orchestrator: orch,
		stats:        stats,
		models:       models,
		library:      library,
		outlines: &outline.Loader{
			Dir:        cfg.OutlineDir,
			Source:     library,
			FromSource: cfg.OutlineFromSource,
			Log:        log,
		},
		log: log,
		cfg: cfg,
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
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/collections", s.handleSubmitCollection)
		r.Post("/api/collections/batch", s.handleBatchCollections)
		r.Get("/api/collections/{jobID}/status", s.handleCollectionStatus)
		r.Get("/api/collections/{jobID}/result", s.handleCollectionResult)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}/outline", s.handleDocumentOutline)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
