package api

import (
	"log/slog"
	"net"
	"strings"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/cometx/api/mcp"
	"github.com/papercomputeco/cometx/pkg/router"
)

// Server is the HTTP front end of a router.Router.
type Server struct {
	config Config
	router  *router.Router
	logger  *slog.Logger
	app     *fiber.App
	origins originPolicy
}

// NewServer creates a new API server around r. The router is shared so the
// CLI and the server can use one client cache and history store.
func NewServer(config Config, r *router.Router, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	origins := config.AllowOrigins
	if origins == "" {
		origins = DefaultAllowOrigins
	}

	s := &Server{
		config:  config,
		router:  r,
		logger:  logger,
		app:     app,
		origins: parseOrigins(origins),
	}

	app.Use(recover.New())
	app.Use(s.checkOrigin)
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: s.origins.allows,
		AllowHeaders:     fiber.HeaderContentType,
	}))
	// Compressed bodies are buffered, which would hold back SSE deltas.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool { return strings.HasSuffix(c.Path(), "/stream") },
	}))

	app.Get("/ping", s.handlePing)
	app.Post("/v1/message", requireJSON, s.handleMessage)
	app.Post("/v1/chat/stream", requireJSON, s.handleChatStream)
	app.Post("/v1/actions/:action/stream", requireJSON, s.handleActionStream)
	app.Get("/v1/settings", s.handleGetSettings)
	app.Put("/v1/settings", requireJSON, s.handlePutSettings)
	app.Get("/v1/models", s.handleModels)
	app.Get("/v1/conversations", s.handleListConversations)
	app.Get("/v1/conversations/:id", s.handleGetConversation)
	app.Delete("/v1/conversations/:id", s.handleDeleteConversation)

	if config.MCP {
		mcpServer, err := mcp.NewServer(mcp.Config{Router: r, Logger: logger})
		if err != nil {
			logger.Error("MCP server disabled", "error", err)
		} else {
			app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
		}
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
