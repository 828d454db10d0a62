package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/internal/scheduler"
	"github.com/me/mcsched/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the health and discovery endpoints.
const Version = "0.3.0"

// Server is the mcsched REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	core      *scheduler.Core
	metrics   *prometheus.Registry
	loopCtx   context.Context
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithLoopContext sets the parent context used when the scheduler loop is
// started through the admin API.
func WithLoopContext(ctx context.Context) Option {
	return func(s *Server) {
		s.loopCtx = ctx
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, core *scheduler.Core, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		core:      core,
		metrics:   prometheus.NewRegistry(),
		loopCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := core.RegisterMetrics(s.metrics); err != nil {
		s.logger.Error("register scheduler metrics", "error", err)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	r.Route("/ui", ui.New(s.core, s.logger).RegisterRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Worker-client protocol
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", s.handleListWorkers)
			r.Post("/", s.handleRegisterWorker)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorker)
				r.Delete("/", s.handleUnregisterWorker)
				r.Put("/heartbeat", s.handleWorkerHeartbeat)
				r.Get("/job", s.handlePollJob)
				r.Post("/chains", s.handleRegisterChain)
				r.Delete("/chains/{cid}", s.handleUnregisterChain)
			})
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleSubmitJob)
			r.Get("/history", s.handleListHistory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Delete("/", s.handleRemoveJob)
				r.Put("/state", s.handleUpdateJobState)
			})
		})

		r.Route("/chains", func(r chi.Router) {
			r.Get("/", s.handleListChains)
			r.Get("/{cid}", s.handleGetChain)
		})

		// Operator controls
		r.Route("/scheduler", func(r chi.Router) {
			r.Post("/pass", s.handleRunPass)
			r.Post("/start", s.handleStartLoop)
			r.Post("/stop", s.handleStopLoop)
			r.Post("/save", s.handleSave)
			r.Post("/load", s.handleLoad)
			r.Post("/clear", s.handleClear)
		})
	})
}
