// Package server exposes the generate pipeline over HTTP.
//
// POST /generate accepts a multipart form and answers with a ZIP download;
// GET /health and GET /ping serve probes. Upload size is capped per request
// and concurrent connections are capped on the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/netutil"

	"github.com/respogen/respogen/internal/config"
	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/services"
)

// Server is the HTTP front of a GenerateService.
type Server struct {
	config       *config.Config
	service      *services.GenerateService
	logger       logging.Logger
	engine       *gin.Engine
	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a server and registers its routes.
func New(cfg *config.Config, svc *services.GenerateService, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	engine := gin.New()

	s := &Server{
		config:  cfg,
		service: svc,
		logger:  logger,
		engine:  engine,
	}

	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.Server.RateLimit,
		BurstSize:         cfg.Server.RateBurst,
	})

	engine.Use(
		recovery(logger),
		requestID(),
		requestLogger(logger),
		corsMiddleware(cfg.Server.AllowedOrigins),
	)

	engine.GET("/health", s.handleHealth)
	engine.GET("/ping", s.handlePing)
	engine.POST("/generate", limiter.Middleware(), s.handleGenerate)
	engine.NoRoute(s.handleNotFound)

	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. The number of simultaneously
// accepted connections is capped by server.max_connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.Server.MaxConnections)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
