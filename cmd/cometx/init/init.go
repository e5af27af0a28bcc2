// Package initcmder provides the init command for initializing a local
// .cometx directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/sqlitepath"
	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/config"
)

const (
	dirName = ".cometx"
)

const initLongDesc string = `Initialize a new .cometx/ directory in the current working directory.

Creates a local .cometx/ directory that takes precedence over the default
~/.cometx/ directory for configuration, credentials and conversation history,
and writes a config.toml holding the defaults. History is kept in
.cometx/history.db unless --no-history is given.

This is useful for keeping a separate Azure deployment or history per project.

Examples:
  cometx init
  cometx init --endpoint https://my-resource.openai.azure.com --deployment gpt-4o-mini`

const initShortDesc string = "Initialize a local .cometx/ directory"

type initCommander struct {
	endpoint   string
	deployment string
	noHistory  bool

	out io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagDeployment, &cmder.deployment)
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not keep conversation history on disk")

	return cmd
}

func (c *initCommander) run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	path := filepath.Join(dir, config.FileName)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .cometx directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	cfg := config.NewDefaultConfig()
	cfg.Azure.Endpoint = c.endpoint
	cfg.Azure.Deployment = c.deployment
	if !c.noHistory {
		cfg.History.SQLitePath = filepath.Join(dir, sqlitepath.FileName)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Initialized .cometx directory: %s\n", cliui.SuccessMark, dir)
	fmt.Fprintf(c.out, "  %s Store your API key with 'cometx auth --config-dir %s'\n",
		cliui.DimStyle.Render("→"), dir)
	return nil
}
