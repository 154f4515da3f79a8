// Package server exposes the Ask endpoint and the operational routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nodecanvas/askgate/internal/metrics"
	"github.com/nodecanvas/askgate/internal/orchestrator"
	"github.com/nodecanvas/askgate/internal/scheduler"
	"github.com/nodecanvas/askgate/internal/state/store"
	"github.com/nodecanvas/askgate/internal/version"
)

// Answerer runs one ask query to completion.
type Answerer interface {
	Run(ctx context.Context, q orchestrator.Query) (*orchestrator.Result, error)
}

// QueryLog records and looks up answered queries.
type QueryLog interface {
	Record(ctx context.Context, r store.QueryRecord) error
	Get(ctx context.Context, queryID string) (*store.QueryRecord, error)
}

// JobRunner reports background job status and runs jobs on demand.
type JobRunner interface {
	Jobs() []scheduler.Status
	RunNow(name string) error
}

type Server struct {
	answerer Answerer
	queryLog QueryLog
	jobs     JobRunner
	health   func(ctx context.Context) error
	metrics  *metrics.Metrics
	apiToken string
	base     zerolog.Logger
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Server)

func WithQueryLog(q QueryLog) Option {
	return func(s *Server) { s.queryLog = q }
}

func WithJobs(j JobRunner) Option {
	return func(s *Server) { s.jobs = j }
}

// WithHealthCheck makes /healthz report 503 while check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) { s.health = check }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAPIToken requires "Authorization: Bearer <token>" on /api routes.
// An empty token leaves them open.
func WithAPIToken(token string) Option {
	return func(s *Server) { s.apiToken = token }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.base = l
		s.logger = l.With().Str("component", "server").Logger()
	}
}

func New(answerer Answerer, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		base:     zerolog.Nop(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, version.Get())
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(bearerAuth(s.apiToken))
		api.Post("/ask", s.handleAsk)
		api.Get("/queries/{queryID}", s.handleGetQuery)
		api.Get("/jobs", s.handleJobs)
		api.Post("/jobs/{name}/run", s.handleRunJob)
	})
	return r
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, []scheduler.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.Jobs())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "scheduler disabled"})
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.jobs.RunNow(name); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrUnknownJob) {
			code = http.StatusNotFound
		}
		writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
