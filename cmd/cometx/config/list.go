package configcmder

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key, grouped by section, with its current value
from the config.toml file stored in the .cometx/ directory.

Examples:
  cometx config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Fprintf(w, "%s %s\n", cliui.DimStyle.Render("Using config file:"), cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	section := ""
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		// Keys are ordered by section; start a new block on each change.
		if s, _, _ := strings.Cut(key, "."); s != section {
			section = s
			fmt.Fprintf(w, "\n%s\n", cliui.HeaderStyle.Render(section))
		}

		shown := cliui.DimStyle.Render("<not set>")
		if value != "" {
			shown = cliui.ValueStyle.Render(strconv.Quote(value))
		}
		fmt.Fprintf(w, "  %s = %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), shown)
	}

	return nil
}
