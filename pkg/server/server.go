package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/repository"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front-end: the search proxy, the store API, health,
// metrics and an optional MCP endpoint.
type Server struct {
	echo          *echo.Echo
	backend       adapter.Backend
	conversations *repository.ConversationStore
	searchLogs    *repository.SearchLogStore
	metrics       *Metrics
	mcpHandler    http.Handler
	logger        *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithStores enables the /api/conversations and /api/logs endpoints
func WithStores(conversations *repository.ConversationStore, searchLogs *repository.SearchLogStore) Option {
	return func(s *Server) {
		s.conversations = conversations
		s.searchLogs = searchLogs
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMCPHandler mounts h on /mcp
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(backend adapter.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(s.requestLogger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.POST("/search", s.handleSearch)
	if s.conversations != nil && s.searchLogs != nil {
		s.registerStoreAPI(api)
	}

	if s.mcpHandler != nil {
		e.Any("/mcp", echo.WrapHandler(s.mcpHandler))
	}

	s.echo = e
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Info("server started", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "failed to run server", goerr.V("addr", addr))

	case <-ctx.Done():
		s.logger.Info("shutting down server", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server", goerr.V("addr", addr))
		}
		return nil
	}
}

// requestLogger attaches a request-scoped logger to the request context and
// writes one access log line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		requestID := uuid.NewString()
		logger := s.logger.With("request_id", requestID)
		c.SetRequest(req.WithContext(logging.With(req.Context(), logger)))
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		startedAt := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}

		logger.Info("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"latency", time.Since(startedAt),
			"remote", c.RealIP(),
		)
		return nil
	}
}
