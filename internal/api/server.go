package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/onur02004/MainRoadmap-sub000/internal/control"
	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/logging"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// limiterCleanupInterval is how often idle rate limiter entries are dropped.
const limiterCleanupInterval = 5 * time.Minute

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Registry   *device.Registry
	States     *device.StateStore
	Dispatcher *control.Dispatcher
	Reconciler *control.Reconciler
	Metrics    *metrics.Metrics // optional
	Audit      AuditLister      // optional; /api/audit is absent when nil
	Hub        *Hub             // optional; created when nil
	DB         HealthChecker    // optional
	Version    string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	registry   *device.Registry
	states     *device.StateStore
	dispatcher *control.Dispatcher
	reconciler *control.Reconciler
	metrics    *metrics.Metrics
	audit      AuditLister
	db         HealthChecker
	limiter    *RateLimiter
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Dispatcher == nil || deps.Reconciler == nil {
		return nil, fmt.Errorf("dispatcher and reconciler are required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		registry:   deps.Registry,
		states:     deps.States,
		dispatcher: deps.Dispatcher,
		reconciler: deps.Reconciler,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		db:         deps.DB,
		hub:        deps.Hub,
		version:    deps.Version,
	}

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = NewRateLimiter(rl.RequestsPerMinute, rl.Burst, s.logger)
	}
	if s.metrics != nil {
		s.metrics.RegisterGaugeFunc("websocket", "clients", "Connected WebSocket clients.", func() float64 {
			return float64(s.hub.ClientCount())
		})
	}

	return s, nil
}

// Hub returns the WebSocket hub. It implements device.StateNotifier.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and rate limiter housekeeping and launches
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.limiter != nil {
		go s.limiter.CleanupLoop(srvCtx, limiterCleanupInterval)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
