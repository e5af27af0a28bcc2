// Package configcmder provides the config command for managing persistent
// cometx configuration stored in the .cometx/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/pkg/config"
)

const configLongDesc string = `Manage persistent cometx configuration.

Configuration is stored as config.toml in the .cometx/ directory and provides
default values for command flags. CLI flags and COMETX_ environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  azure.endpoint, azure.deployment, azure.api_version,
  chat.max_tokens, chat.temperature,
  ui.theme, ui.language,
  features.context_menu, features.keyboard_shortcuts,
  server.listen, history.sqlite_path,
  events.kafka_brokers, events.kafka_topic

The API key is not part of config.toml; store it with "cometx auth".

Use subcommands to get, set, or list configuration values:
  cometx config set <key> <value>    Set a configuration value
  cometx config get <key>            Get a configuration value
  cometx config list                 List all configuration values

Examples:
  cometx config set azure.endpoint https://my-resource.openai.azure.com/
  cometx config set chat.temperature 0.3
  cometx config get azure.deployment
  cometx config list`

const configShortDesc string = "Manage persistent cometx configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}
