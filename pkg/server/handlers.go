package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/types"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "stats_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := s.service.Ingest(c.Request.Context(), req.Text, req.Metadata)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrEmptyContent) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "ingest_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	for _, method := range req.Methods {
		switch types.SearchMethod(method) {
		case types.LexicalSearch, types.SemanticSearch, types.GraphSearch:
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "unknown search method: " + method})
			return
		}
	}

	result, err := s.service.Retrieve(c.Request.Context(), req.Query, req.Options())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrUnknownRerankerType) || errors.Is(err, search.ErrRerankerCapabilityMissing) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "query_failed", Message: err.Error()})
		return
	}

	resp := QueryResponse{Result: result}
	if req.Synthesize {
		answer, err := s.service.Synthesize(c.Request.Context(), req.Query, result)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "synthesis_failed", Message: err.Error()})
			return
		}
		resp.Answer = answer
	}
	c.JSON(http.StatusOK, resp)
}
