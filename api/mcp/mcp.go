// Package mcp provides an MCP (Model Context Protocol) server exposing the
// cometx page tools to MCP clients.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/utils"
)

type Config struct {
	// Router runs page extraction, actions and history lookups.
	Router *router.Router

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the page, action and history tools.
func NewServer(c Config) (*Server, error) {
	if c.Router == nil {
		return nil, errors.New("router is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cometx",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        analyzeToolName,
		Description: analyzeDescription,
	}, s.handleAnalyze)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        actionToolName,
		Description: actionDescription,
	}, s.handleAction)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        conversationsToolName,
		Description: conversationsDescription,
	}, s.handleConversations)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError reports a failed tool call to the client without failing the
// protocol exchange.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
