// Package api serves the cometx router over HTTP for browser clients and
// scripts: the message envelope, streaming chat, settings, the deployment
// catalog and stored conversations.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:8787")
	ListenAddr string

	// AllowOrigins is the comma separated list of browser origins allowed to
	// call the service: exact origins, "scheme://*" or "*". Empty means
	// DefaultAllowOrigins.
	AllowOrigins string

	// MCP mounts the MCP server at /mcp.
	MCP bool
}
