package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"modex-hq/aegis/pkg/api/handlers"
	"modex-hq/aegis/pkg/api/middleware"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/engine"
	"modex-hq/aegis/pkg/limits"
	"modex-hq/aegis/pkg/routing"
	"modex-hq/aegis/pkg/telemetry/health"
	"modex-hq/aegis/pkg/telemetry/metrics"
)

// Dependencies are the constructed components the server exposes over HTTP.
type Dependencies struct {
	Engine   *engine.Engine
	Registry *backend.Registry
	Router   *routing.Router
	Checker  *health.Checker

	// Metrics is nil when metrics are disabled; the metrics endpoint is
	// not registered in that case.
	Metrics *metrics.Collector

	Version health.VersionInfo
}

// Server is the moderation service's HTTP server.
type Server struct {
	config       *config.Config
	deps         Dependencies
	limiter      *limits.ConcurrentLimiter
	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates the server. It does not listen until Start is called.
func New(cfg *config.Config, deps Dependencies) *Server {
	return &Server{
		config:  cfg,
		deps:    deps,
		limiter: limits.NewConcurrentLimiter(cfg.Server.MaxConcurrent),
		logger:  slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting moderation server",
			"address", s.config.Server.ListenAddress,
			"max_concurrent", s.config.Server.MaxConcurrent,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully drains in-flight requests, bounded by the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown",
			"timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("moderation server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	moderateHandler := handlers.NewModerateHandler(s.deps.Engine, s.config.Limits, s.deps.Metrics)
	batchHandler := handlers.NewBatchHandler(s.deps.Engine, s.config.Limits, s.deps.Metrics)
	healthHandler := handlers.NewHealthHandler(s.deps.Registry)
	modelsHandler := handlers.NewModelsHandler(s.deps.Registry, s.deps.Router.Store())
	adminHandler := handlers.NewAdminRoutingHandler(s.deps.Router, s.deps.Registry, s.deps.Metrics)

	mux.Handle("/moderate-image", moderateHandler)
	mux.Handle("/batch-moderate", batchHandler)
	mux.Handle("/health", healthHandler)
	mux.Handle("/models", modelsHandler)
	mux.HandleFunc("/admin/routing", adminHandler.State)
	mux.HandleFunc("/admin/routing/promote", adminHandler.Promote)
	mux.HandleFunc("/admin/routing/policy", adminHandler.UpdatePolicy)
	mux.HandleFunc("/healthz", s.deps.Checker.LivenessHandler())
	mux.HandleFunc("/readyz", s.deps.Checker.ReadinessHandler())
	mux.HandleFunc("/version", health.VersionHandler(s.deps.Version))

	metricsPath := s.config.Telemetry.Metrics.Path
	if s.deps.Metrics != nil {
		mux.Handle(metricsPath, s.deps.Metrics.Handler())
	}

	// Probes, metrics, and the admin surface bypass the admission cap so
	// operators keep visibility under overload.
	exempt := []string{
		"/health", "/healthz", "/readyz", "/version", "/models", metricsPath,
		"/admin/routing", "/admin/routing/promote", "/admin/routing/policy",
	}

	var handler http.Handler = mux
	handler = middleware.Admission(s.limiter, exempt...)(handler)
	handler = middleware.Deadline(handler)
	handler = middleware.CORS(s.config.Server.CORS)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}
