// Package server exposes the session registry over HTTP for consumers that
// run outside the labkeeper process: list and resolve sessions, remove them,
// and stream handle changes over a websocket.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
	"github.com/Iron-Ham/labkeeper/internal/provider"
	"github.com/Iron-Ham/labkeeper/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Surface  *provider.Surface
	Handle   *provider.Handle
	Registry *registry.Registry
	// Metrics is served on /metrics when non-nil.
	Metrics *metrics.Collector
	Logger  *logging.Logger
}

// Server is the consumer HTTP API.
type Server struct {
	router   *gin.Engine
	surface  *provider.Surface
	handle   *provider.Handle
	registry *registry.Registry
	logger   *logging.Logger
	stream   *streamHandler
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		surface:  opts.Surface,
		handle:   opts.Handle,
		registry: opts.Registry,
		logger:   opts.Logger.WithComponent("api"),
	}
	s.stream = newStreamHandler(opts.Handle, s.logger)
	router.Use(s.logRequests())

	router.GET("/health", s.health)

	api := router.Group("/api")
	api.GET("/providers", s.listProviders)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/stream", s.stream.serve)
	api.GET("/sessions/:id", s.resolveSession)
	api.DELETE("/sessions/:id", s.removeSession)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.stream.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
