package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/metasim/ogcapi/internal/config"
	"github.com/metasim/ogcapi/internal/executor"
	"github.com/metasim/ogcapi/internal/metrics"
	"github.com/metasim/ogcapi/internal/ogc"
)

// Conformance classes implemented by this server.
var conformanceClasses = []string{
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/ogc-process-description",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/json",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/job-list",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/dismiss",
}

// Server wires HTTP handlers to the registry, job store, and executor.
type Server struct {
	router      chi.Router
	registry    ogc.Registry
	store       ogc.JobStore
	exec        *executor.Executor
	cfg         config.Config
	logger      *zap.Logger
	landing     ogc.LandingPage
	conformance ogc.Conformance
}

// NewServer constructs a Server with middleware and routes. The landing
// page and conformance documents are assembled here, once, and never
// mutated afterwards.
func NewServer(
	registry ogc.Registry,
	store ogc.JobStore,
	exec *executor.Executor,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.Server.BaseURL
	s := &Server{
		registry: registry,
		store:    store,
		exec:     exec,
		cfg:      cfg,
		logger:   logger,
		landing: ogc.LandingPage{
			Title:       "OGC API - Processes",
			Description: "Asynchronous process execution over HTTP.",
			Links: []ogc.Link{
				{Href: base + "/", Rel: ogc.RelSelf, Type: ogc.MediaTypeJSON},
				{Href: base + "/conformance", Rel: ogc.RelConformance, Type: ogc.MediaTypeJSON, Title: "Conformance classes"},
				{Href: base + "/processes", Rel: ogc.RelProcesses, Type: ogc.MediaTypeJSON, Title: "Metadata about the processes"},
				{Href: base + "/jobs", Rel: ogc.RelJobList, Type: ogc.MediaTypeJSON, Title: "The endpoint for job monitoring"},
			},
		},
		conformance: ogc.Conformance{ConformsTo: conformanceClasses},
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Prefer"},
		}).Handler)
	}

	r.Get("/", s.landingPage)
	r.Get("/conformance", s.getConformance)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/processes", func(r chi.Router) {
		r.Get("/", s.listProcesses)
		r.Route("/{processID}", func(r chi.Router) {
			r.Get("/", s.getProcess)
			r.Post("/execution", s.execute)
		})
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Delete("/", s.dismissJob)
			r.Get("/results", s.getResults)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) landingPage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.landing)
}

func (s *Server) getConformance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.conformance)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The job store is the only downstream; one cheap read proves it
	// is reachable.
	if _, _, err := s.store.List(r.Context(), ogc.JobFilter{}, ogc.PageQuery{Limit: 1}); err != nil {
		writeException(w, http.StatusServiceUnavailable, excServerError, "job store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
