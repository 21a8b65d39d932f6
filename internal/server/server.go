// Package server exposes documents over a REST API.
//
// Routes:
//
//	GET    /health                      - liveness
//	GET    /metrics                     - Prometheus metrics
//	GET    /api/documents               - list document ids
//	POST   /api/documents               - create {documentId, change}, returns the version
//	GET    /api/documents/:id           - current {data, version}
//	DELETE /api/documents/:id           - delete, {deleted}
//	GET    /api/documents/:id/changes   - changes after ?since=n
//	POST   /api/documents/:id/changes   - append {baseVersion, change}
//	POST   /api/snapshots               - snapshot for {documentId, version}
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DefaultMaxBodyBytes bounds request bodies when Config leaves it unset.
const DefaultMaxBodyBytes = 8 << 20

// Config configures the HTTP layer.
type Config struct {
	// ServiceName names the tracer spans. Defaults to "docengine".
	ServiceName  string
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server is the REST front of a Service.
type Server struct {
	router   *gin.Engine
	handlers *Handlers
	logger   *slog.Logger
}

// New builds the router for svc.
func New(svc *Service, cfg Config) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "docengine"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		router:   gin.New(),
		handlers: NewHandlers(svc, cfg.Logger),
		logger:   cfg.Logger,
	}
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		s.observe,
		limitBody(cfg.MaxBodyBytes),
	)

	s.router.GET("/health", s.handlers.HandleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(s.router.Group("/api"), s.handlers)
	return s
}

// RegisterRoutes registers the document routes on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	docs := rg.Group("/documents")
	{
		docs.GET("", h.HandleListDocuments)
		docs.POST("", h.HandleCreateDocument)
		docs.GET("/:id", h.HandleGetDocument)
		docs.DELETE("/:id", h.HandleDeleteDocument)
		docs.GET("/:id/changes", h.HandleGetChanges)
		docs.POST("/:id/changes", h.HandleApplyChange)
	}
	rg.POST("/snapshots", h.HandleSnapshot)
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// observe records request metrics and logs every request.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	elapsed := time.Since(start)
	requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "http request",
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"duration", elapsed)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
