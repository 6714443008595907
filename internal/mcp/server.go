package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"course-rag-server/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	index  *storage.VectorIndex
}

// Config holds server dependencies.
type Config struct {
	Index *storage.VectorIndex
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "course-rag-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_course_content",
		Description: "Search course materials semantically, with optional course and lesson filters. Course names resolve fuzzily against the catalog.",
	}, makeSearchHandler(cfg.Index))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_course_outline",
		Description: "Get a course's outline: title, link, instructor and the complete numbered lesson list.",
	}, makeOutlineHandler(cfg.Index))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the course index including course and chunk counts and the list of indexed course titles.",
	}, makeStatusHandler(cfg.Index))

	return &Server{
		server: server,
		index:  cfg.Index,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a stateless Streamable HTTP handler for mounting the
// server on a single path. The tools need no server-to-client requests, so
// no session state is kept across requests.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}
