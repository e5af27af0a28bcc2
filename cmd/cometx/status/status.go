// Package statuscmder provides the status command for displaying the
// effective configuration and where each part of it comes from.
package statuscmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/config"
	"github.com/papercomputeco/cometx/pkg/credentials"
	"github.com/papercomputeco/cometx/pkg/logger"
)

const statusLongDesc string = `Show the effective cometx configuration.

Resolves the .cometx/ directory the same way every other command does and
prints the Azure deployment, the API key source (never the key itself), the
history backend and the event stream.

Examples:
  cometx status
  COMETX_AZURE_DEPLOYMENT=gpt-4o-mini cometx status`

const statusShortDesc string = "Show the effective configuration"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runStatus(out io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return err
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	key, source, err := mgr.ResolveKey(credentials.ProviderAzure)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	row := func(k, v string) {
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-12s", k+":")), cliui.ValueStyle.Render(v))
	}

	fmt.Fprintln(out)
	row("Config", cfger.GetTarget())
	row("Endpoint", cfg.Azure.Endpoint)
	row("Deployment", cfg.Azure.Deployment)
	row("API version", cfg.Azure.APIVersion)

	switch source {
	case credentials.SourceEnv:
		row("API key", logger.Redact(key)+" (from "+credentials.EnvVarForProvider(credentials.ProviderAzure)+")")
	case credentials.SourceFile:
		row("API key", logger.Redact(key)+" (from "+mgr.GetTarget()+")")
	default:
		fmt.Fprintf(out, "  %s  %s No API key. Run 'cometx auth'.\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-12s", "API key:")), cliui.FailMark)
	}

	if cfg.History.SQLitePath != "" {
		row("History", cfg.History.SQLitePath)
	} else {
		row("History", "in-memory")
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		row("Events", cfg.Events.KafkaTopic+" @ "+strings.Join(cfg.Events.KafkaBrokers, ","))
	} else {
		row("Events", "disabled")
	}
	fmt.Fprintln(out)

	return nil
}
