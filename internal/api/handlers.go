package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"course-rag-server/internal/generator"
	"course-rag-server/internal/search"
	"course-rag-server/internal/storage"
)

// queryRequest is the body of both query endpoints.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// queryResponse is the non-streaming answer envelope.
type queryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []search.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

func (s *Server) handleQuery(c *gin.Context) {
	req, ok := s.bindQuery(c)
	if !ok {
		return
	}

	answer, err := s.service.Query(c.Request.Context(), req.Query, req.SessionID)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []search.Source{}
	}
	c.JSON(http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}

// handleQueryStream answers over SSE. Each frame is a single data line of
// JSON; the stream ends with a [DONE] sentinel.
func (s *Server) handleQueryStream(c *gin.Context) {
	req, ok := s.bindQuery(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := s.service.QueryStream(c.Request.Context(), req.Query, req.SessionID)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				fmt.Fprint(w, "data: [DONE]\n\n")
				return false
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("event marshal failed", "error", err)
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) handleCourses(c *gin.Context) {
	analytics, err := s.service.GetAnalytics(c.Request.Context())
	if err != nil {
		s.logger.Error("course analytics failed", "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (s *Server) handleClearSession(c *gin.Context) {
	s.service.ClearSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// bindQuery parses and validates the request body, writing a 400 on bad
// input.
func (s *Server) bindQuery(c *gin.Context) (queryRequest, bool) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
		return req, false
	}
	return req, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generator.ErrModelUnavailable),
		errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrCourseNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
