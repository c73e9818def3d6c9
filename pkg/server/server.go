package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel/trace"

	"utrix-hq/quotaflow/pkg/config"
	"utrix-hq/quotaflow/pkg/monitoring"
	alertstorage "utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/routing"
	"utrix-hq/quotaflow/pkg/telemetry/readiness"
	"utrix-hq/quotaflow/pkg/telemetry/tracing"
)

// Manager is the quota manager surface the status API serves.
// *quota.Manager implements it.
type Manager interface {
	Kinds() []providers.Kind
	Limits(kind providers.Kind) (providers.QuotaLimits, bool)
	GetCurrentUsage(ctx context.Context) map[providers.Kind]providers.QuotaUsage
	CachedUsage(ctx context.Context) map[providers.Kind]providers.QuotaUsage
	UsagePercentages(u providers.QuotaUsage) providers.UsagePercentages

	CalculateProjection(ctx context.Context, kind providers.Kind, method string) (*projection.ExecutionProjection, error)
	CalculateAllProjections(ctx context.Context, method string) map[providers.Kind]*projection.ExecutionProjection
	CompareProjectionMethods(ctx context.Context, kind providers.Kind) (map[projection.Method]*projection.ExecutionProjection, error)
	AnalyzeTrend(ctx context.Context, kind providers.Kind) (*projection.TrendAnalysis, error)
	AnalyzeSeasonal(ctx context.Context, kind providers.Kind) (*projection.SeasonalPattern, error)

	ExecuteFunction(ctx context.Context, req *routing.FunctionRequest) (*routing.ExecutionResult, error)
	GetLoadBalancerStatus(ctx context.Context) *routing.Status

	CheckAlerts(ctx context.Context) (*monitoring.CheckResult, error)
	Alerts(ctx context.Context, q *alertstorage.Query) ([]monitoring.Alert, error)
}

// Options configures a Server.
type Options struct {
	// Readiness serves /health and /ready. A checker with no checks is
	// used when nil.
	Readiness *readiness.Checker

	Version readiness.VersionInfo

	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string

	// Tracer starts a server span per request. Nil disables spans but
	// still propagates incoming trace context.
	Tracer trace.Tracer

	Logger *slog.Logger
}

// Server is the status HTTP API.
type Server struct {
	config       config.ServerConfig
	manager      Manager
	opts         Options
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a status API server for mgr.
func NewServer(cfg config.ServerConfig, mgr Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Readiness == nil {
		opts.Readiness = readiness.New(0)
	}
	return &Server{
		config:       cfg,
		manager:      mgr,
		opts:         opts,
		logger:       opts.Logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start serves until ctx is cancelled, Stop is called or the listener
// fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server within the configured
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

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
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

		s.logger.Info("status server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.HandlerFunc(http.MethodGet, "/health", s.opts.Readiness.LivenessHandler())
	router.HandlerFunc(http.MethodGet, "/ready", s.opts.Readiness.ReadinessHandler())
	router.HandlerFunc(http.MethodGet, "/version", readiness.VersionHandler(s.opts.Version))

	router.GET("/status", s.handleStatus)
	router.GET("/usage", s.handleUsage)
	router.GET("/projections", s.handleProjections)
	router.GET("/projections/:provider", s.handleProjection)
	router.GET("/trends/:provider", s.handleTrend)
	router.GET("/seasonal/:provider", s.handleSeasonal)
	router.GET("/alerts", s.handleAlerts)
	router.POST("/alerts/check", s.handleCheckAlerts)
	router.POST("/execute", s.handleExecute)

	if s.opts.Metrics != nil && s.opts.MetricsPath != "" {
		router.Handler(http.MethodGet, s.opts.MetricsPath, s.opts.Metrics)
	}

	var handler http.Handler = router
	handler = tracing.HTTPMiddleware(s.opts.Tracer, handler)
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(s.logger, handler)
	handler = recoveryMiddleware(s.logger, handler)
	return handler
}
