// Package cometxcmder
package cometxcmder

import (
	"github.com/spf13/cobra"

	actioncmder "github.com/papercomputeco/cometx/cmd/cometx/action"
	analyzecmder "github.com/papercomputeco/cometx/cmd/cometx/analyze"
	authcmder "github.com/papercomputeco/cometx/cmd/cometx/auth"
	chatcmder "github.com/papercomputeco/cometx/cmd/cometx/chat"
	configcmder "github.com/papercomputeco/cometx/cmd/cometx/config"
	historycmder "github.com/papercomputeco/cometx/cmd/cometx/history"
	initcmder "github.com/papercomputeco/cometx/cmd/cometx/init"
	servecmder "github.com/papercomputeco/cometx/cmd/cometx/serve"
	statuscmder "github.com/papercomputeco/cometx/cmd/cometx/status"
	versioncmder "github.com/papercomputeco/cometx/cmd/version"
	"github.com/papercomputeco/cometx/pkg/prompt"
)

const cometxLongDesc string = `Comet-X is an AI browsing assistant backed by Azure OpenAI.

It reads the page you are on, answers questions about it, and runs quick
actions (ask, explain, translate, summarize) on selected text.

Run the local service for the browser extension:
  cometx serve

Or use it straight from the terminal:
  cometx chat --url https://go.dev/blog/intro-generics
  cometx summarize --url https://go.dev/blog/intro-generics
  cometx translate "Good morning"`

const cometxShortDesc string = "Comet-X - AI browsing assistant"

func NewCometxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cometx",
		Short:        cometxShortDesc,
		Long:         cometxLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .cometx/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	for _, a := range prompt.Actions {
		cmd.AddCommand(actioncmder.NewActionCmd(a))
	}
	cmd.AddCommand(analyzecmder.NewAnalyzeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
