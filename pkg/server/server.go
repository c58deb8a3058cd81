// Package server exposes ingestion and retrieval over HTTP with gin.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaygraph/relaygraph"
	"github.com/relaygraph/relaygraph/pkg/config"
	"github.com/relaygraph/relaygraph/pkg/types"
)

// Service is the facade surface the HTTP layer consumes. Implemented by
// *relaygraph.Client; tests substitute fakes.
type Service interface {
	Ingest(ctx context.Context, text string, metadata map[string]string) (*types.IngestionResult, error)
	Retrieve(ctx context.Context, query string, opts *relaygraph.RetrieveOptions) (*types.RetrievalResult, error)
	Synthesize(ctx context.Context, query string, result *types.RetrievalResult) (string, error)
	Stats(ctx context.Context) (*relaygraph.Stats, error)
}

// Server is the HTTP server.
type Server struct {
	config  *config.Config
	router  *gin.Engine
	service Service
	server  *http.Server
}

// New creates a server around the given service.
func New(cfg *config.Config, service Service) *Server {
	return &Server{config: cfg, service: service}
}

// Setup builds the router, middleware, and http.Server. Must run before
// Start.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(requestIDMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/stats", s.stats)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", s.ingest)
		v1.POST("/query", s.query)
		v1.GET("/stats", s.stats)
	}
}

// Start blocks serving HTTP until the listener fails or Stop runs.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
