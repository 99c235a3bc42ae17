// Package httpapi serves the conversation index over HTTP with gin.
//
// Every route is mounted at the root and again under /api/v1:
//
//	GET  /search?q=<query>&limit=<n>
//	GET  /conversation/:session_id
//	GET  /status
//	POST /reindex
//	GET  /stats
//	GET  /health
//
// /metrics exposes the Prometheus registry when metrics are enabled.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/chatsearch/internal/search"
	"github.com/Aman-CERP/chatsearch/internal/telemetry"
)

// DefaultAddr is the listen address used when Config.Addr is empty.
const DefaultAddr = "127.0.0.1:9000"

const shutdownTimeout = 5 * time.Second

// Service is the query surface the handlers call. *search.Engine implements it.
type Service interface {
	Search(ctx context.Context, query string, limit int) *search.SearchResponse
	Conversation(ctx context.Context, sessionID string) *search.ConversationResponse
	Status(ctx context.Context) *search.StatusResponse
	TriggerReindex() *search.ReindexResponse
	Telemetry() *telemetry.QueryMetricsSnapshot
}

// Config configures the HTTP server.
type Config struct {
	Addr string
}

// Server is the HTTP front end.
type Server struct {
	config  Config
	service Service
	metrics *telemetry.Metrics
	router  *gin.Engine
	logger  *slog.Logger
}

// NewServer builds the router. metrics may be nil, which disables /metrics.
func NewServer(cfg Config, service Service, metrics *telemetry.Metrics) (*Server, error) {
	if service == nil {
		return nil, errors.New("search service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		service: service,
		metrics: metrics,
		router:  router,
		logger:  slog.Default(),
	}

	router.Use(
		recoveryMiddleware(s.logger),
		loggerMiddleware(s.logger, "/health", "/api/v1/health"),
		metricsMiddleware(metrics),
	)
	s.routes()
	return s, nil
}

// Router returns the gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

func (s *Server) routes() {
	s.mount(s.router.Group("/"))
	s.mount(s.router.Group("/api/v1"))

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	})
}

func (s *Server) mount(g *gin.RouterGroup) {
	g.GET("/search", s.handleSearch)
	g.GET("/conversation/:session_id", s.handleConversation)
	g.GET("/status", s.handleStatus)
	g.POST("/reindex", s.handleReindex)
	g.GET("/stats", s.handleStats)
	g.GET("/health", s.handleHealth)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http_listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http_shutdown_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("http_stopped")
	return nil
}
