// Package authcmder provides the auth command for storing the Azure OpenAI
// API key.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/credentials"
	"github.com/papercomputeco/cometx/pkg/logger"
)

const authLongDesc string = `Store the Azure OpenAI API key.

The key is stored in credentials.toml (mode 0600) in the .cometx/ directory.
The AZURE_OPENAI_API_KEY environment variable, when set, takes precedence
over the stored key.

Examples:
  cometx auth                  Prompt for the API key
  cometx auth --status         Show where the key is resolved from
  cometx auth --remove         Remove the stored key
  echo $KEY | cometx auth      Pipe the API key from stdin`

const authShortDesc string = "Store the Azure OpenAI API key"

type authCommander struct {
	status bool
	remove bool

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			configDir, _ := cmd.Flags().GetString("config-dir")

			provider := credentials.ProviderAzure
			if len(args) == 1 {
				provider = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if !credentials.IsSupportedProvider(provider) {
				return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
					provider, strings.Join(credentials.SupportedProviders(), ", "))
			}

			switch {
			case cmder.status:
				return cmder.runStatus(provider, configDir)
			case cmder.remove:
				return cmder.runRemove(provider, configDir)
			default:
				return cmder.runAuth(provider, configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&cmder.status, "status", false, "Show where the API key is resolved from")
	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored API key")

	return cmd
}

func (c *authCommander) runAuth(provider, configDir string) error {
	apiKey, err := c.readAPIKey(provider)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(provider, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored %s API key %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider),
		cliui.DimStyle.Render("("+logger.Redact(apiKey)+")"),
	)
	if os.Getenv(credentials.EnvVarForProvider(provider)) != "" {
		fmt.Fprintf(c.out, "  %s %s is set and takes precedence over the stored key.\n",
			cliui.WarnStyle.Render("!"),
			credentials.EnvVarForProvider(provider),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *authCommander) runStatus(provider, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	key, source, err := mgr.ResolveKey(provider)
	if err != nil {
		return err
	}

	switch source {
	case credentials.SourceEnv:
		fmt.Fprintf(c.out, "\n  %s %s %s\n\n", cliui.SuccessMark, logger.Redact(key),
			cliui.DimStyle.Render("(from "+credentials.EnvVarForProvider(provider)+")"))
	case credentials.SourceFile:
		fmt.Fprintf(c.out, "\n  %s %s %s\n\n", cliui.SuccessMark, logger.Redact(key),
			cliui.DimStyle.Render("(from "+mgr.GetTarget()+")"))
	default:
		fmt.Fprintf(c.out, "\n  %s No API key. Run 'cometx auth' or set %s.\n\n",
			cliui.FailMark, credentials.EnvVarForProvider(provider))
	}
	return nil
}

func (c *authCommander) runRemove(provider, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed %s API key.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))
	return nil
}

// readAPIKey reads an API key from stdin. If stdin is a pipe, it reads the
// first line. Otherwise, it prompts interactively with hidden input.
func (c *authCommander) readAPIKey(provider string) (string, error) {
	f, isFile := c.in.(*os.File)
	if isFile && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter API key for %s (%s): ", provider, credentials.EnvVarForProvider(provider))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
