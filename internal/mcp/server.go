// ABOUTME: MCP server setup for the bloom metric store.
// ABOUTME: Wraps the MCP server with store access and an optional job runner.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/storage"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	store     storage.Store
	runner    *jobs.Runner
}

// NewServer creates a new MCP server. runner may be nil, in which case run_job reports an error.
func NewServer(store storage.Store, runner *jobs.Runner) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "bloom",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		store:     store,
		runner:    runner,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
