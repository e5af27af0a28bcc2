// Package servecmder provides the serve command that runs the cometx HTTP
// service for the browser extension.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/api"
	"github.com/papercomputeco/cometx/cmd/cometx/session"
	"github.com/papercomputeco/cometx/pkg/config"
	"github.com/papercomputeco/cometx/pkg/settings"
)

type serveCommander struct {
	flags        session.Flags
	listen       string
	allowOrigins string
	mcp          bool
	logFile      string
}

const serveLongDesc string = `Run the cometx HTTP service.

The service exposes the message router used by the browser extension:
  POST /v1/message                     Router envelope {type, payload}
  POST /v1/chat/stream                 Streaming chat (server-sent events)
  POST /v1/actions/:action/stream      Streaming ask/explain/translate/summarize
  GET  /v1/settings, PUT /v1/settings  Settings (the API key is never returned)
  GET  /v1/models                      Deployment catalog
  GET  /v1/conversations[/:id]         Conversation history
  POST /mcp                            MCP tools (with --mcp)

Settings saved through the service are written to the .cometx/ directory.
Edits made to config.toml or credentials.toml while the service runs take
effect on the next request.`

const serveShortDesc string = "Run the cometx HTTP service"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	session.AddStorageFlags(cmd, &cmder.flags)
	cmd.Flags().StringVar(&cmder.allowOrigins, "allow-origins", "", "Comma separated browser origins allowed to call the service (default: "+api.DefaultAllowOrigins+")")
	cmd.Flags().BoolVar(&cmder.mcp, "mcp", false, "Serve the page tools over MCP at /mcp")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	sess, err := session.Open(cmd,
		session.WithFileSettings(),
		session.WithLogWriter(os.Stdout),
		session.WithLogFile(c.logFile),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	listen := sess.Config.Server.Listen
	if cmd.Flags().Changed(config.Flags[config.FlagListen].Name) {
		listen = c.listen
	}

	server := api.NewServer(api.Config{
		ListenAddr:   listen,
		AllowOrigins: c.allowOrigins,
		MCP:          c.mcp,
	}, sess.Router, sess.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if fs, ok := sess.Settings.(*settings.FileStore); ok {
		go func() {
			if err := sess.Router.Watch(ctx, fs.ConfigPath(), fs.CredentialsPath()); err != nil {
				sess.Logger.Warn("settings watcher stopped", "error", err)
			}
		}()
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		sess.Logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
