// Package api exposes the query system over HTTP: JSON endpoints, an SSE
// streaming endpoint and a health probe.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"course-rag-server/internal/rag"
)

// Service is the orchestration surface the handlers depend on. Satisfied by
// rag.System.
type Service interface {
	Query(ctx context.Context, query, sessionID string) (*rag.Answer, error)
	QueryStream(ctx context.Context, query, sessionID string) <-chan rag.Event
	ClearSession(sessionID string)
	GetAnalytics(ctx context.Context) (*rag.Analytics, error)
}

// HealthChecker reports backend liveness. Satisfied by storage.VectorIndex.
type HealthChecker interface {
	Health(ctx context.Context) error
}

const healthTimeout = 3 * time.Second

// Server holds the HTTP handler dependencies.
type Server struct {
	service Service
	health  HealthChecker
	logger  *slog.Logger
}

// NewServer creates the handler set.
func NewServer(service Service, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{service: service, health: health, logger: logger}
}

// Router builds the gin engine with all routes mounted. Extra handlers are
// mounted verbatim at their exact paths.
func (s *Server) Router(extra map[string]http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))

	router.GET("/health", s.handleHealth)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/query", s.handleQuery)
		apiGroup.POST("/query/stream", s.handleQueryStream)
		apiGroup.GET("/courses", s.handleCourses)
		apiGroup.DELETE("/sessions/:id", s.handleClearSession)
	}

	// Streamable HTTP transports serve a single endpoint path, so exact
	// routes are enough.
	for prefix, handler := range extra {
		router.Any(prefix, gin.WrapH(handler))
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := s.health.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
