package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/monitoring"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
)

// Archiver records terminal jobs in durable storage. Optional.
type Archiver interface {
	ArchiveJob(ctx context.Context, j *domain.Job) error
}

// Server is the HTTP ingestion boundary: it creates workflows and jobs,
// enqueues them for the scheduler, and exposes read and cancel operations.
type Server struct {
	store     *storage.MemoryStore
	observers monitoring.JobObserver
	metrics   *monitoring.MetricsCollector
	archive   Archiver
	mux       *http.ServeMux
	handler   http.Handler
	logger    zerolog.Logger
}

// NewServer creates the REST server. observers, metrics, and archive may be
// nil. Extra handlers (e.g. the websocket feed) can be mounted with Handle
// before serving.
func NewServer(store *storage.MemoryStore, observers monitoring.JobObserver, metrics *monitoring.MetricsCollector, archive Archiver, logger zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		observers: observers,
		metrics:   metrics,
		archive:   archive,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.routes()
	s.handler = recoveryMiddleware(logger,
		loggingMiddleware(logger,
			corsMiddleware(s.mux)))
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("GET /workflows", s.handleListWorkflows)
	s.mux.HandleFunc("GET /workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("GET /workflows/{id}/jobs", s.handleGetWorkflowJobs)
	s.mux.HandleFunc("GET /workflows/{id}/progress", s.handleGetWorkflowProgress)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
}

// Handle mounts an extra handler on the server's mux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]monitoring.JobTypeMetrics{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
