// Package actioncmder provides the one-shot ask, explain, translate and
// summarize commands, the terminal counterparts of the context menu.
package actioncmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/session"
	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/prompt"
	"github.com/papercomputeco/cometx/pkg/router"
)

type actionCommander struct {
	action    prompt.Action
	flags     session.Flags
	url       string
	selection string
	stream    bool

	in  io.Reader
	out io.Writer
}

var descriptions = map[prompt.Action]struct{ short, long string }{
	prompt.ActionAsk: {
		short: "Ask a question, optionally about a page",
		long: `Ask a question and print the answer.

Examples:
  cometx ask "What is a goroutine?"
  cometx ask --url https://go.dev/doc/effective_go "What does this say about errors?"`,
	},
	prompt.ActionExplain: {
		short: "Explain a piece of text",
		long: `Explain a piece of text clearly and simply.

The text is taken from the arguments, --selection, or stdin.

Examples:
  cometx explain "amortized complexity"
  pbpaste | cometx explain --url https://example.com/article`,
	},
	prompt.ActionTranslate: {
		short: "Translate a piece of text",
		long: `Translate a piece of text into the configured language (ui.language).

Examples:
  cometx translate "Good morning"
  cometx config set ui.language en && cometx translate "صباح الخير"`,
	},
	prompt.ActionSummarize: {
		short: "Summarize a page or a piece of text",
		long: `Summarize a page or a piece of text in a few bullet points.

With --url and no text the whole page is summarized.

Examples:
  cometx summarize --url https://go.dev/blog/intro-generics
  cat notes.md | cometx summarize`,
	},
}

// NewActionCmd returns the command running action.
func NewActionCmd(action prompt.Action) *cobra.Command {
	cmder := &actionCommander{action: action}
	desc := descriptions[action]

	cmd := &cobra.Command{
		Use:   string(action) + " [text...]",
		Short: desc.short,
		Long:  desc.long,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd, args)
		},
	}

	session.AddModelFlags(cmd, &cmder.flags)
	session.AddStorageFlags(cmd, &cmder.flags)
	cmd.Flags().StringVarP(&cmder.url, "url", "u", "", "Page to use as context")
	cmd.Flags().StringVar(&cmder.selection, "selection", "", "Selected text to act on")
	cmd.Flags().BoolVar(&cmder.stream, "stream", false, "Print the reply as it streams instead of rendering it")

	return cmd
}

func (c *actionCommander) run(cmd *cobra.Command, args []string) error {
	text, err := c.text(args)
	if err != nil {
		return err
	}
	if text == "" && (c.action != prompt.ActionSummarize || c.url == "") {
		return fmt.Errorf("%s needs text: pass it as arguments, with --selection, or on stdin", c.action)
	}

	sess, err := session.Open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	payload := router.ActionPayload{Text: text, PageURL: c.url}

	if c.stream || !isTerminal(c.out) {
		return c.runStream(ctx, sess.Router, payload)
	}

	var result *router.ChatResult
	err = cliui.Step(c.out, cliui.DimStyle.Render(string(c.action)), func() error {
		var err error
		result, err = sess.Router.Action(ctx, c.action, payload)
		return err
	})
	if err != nil {
		return err
	}

	out, err := cliui.RenderMarkdown(result.Content)
	if err != nil {
		out = result.Content + "\n"
	}
	fmt.Fprint(c.out, out)
	return nil
}

func (c *actionCommander) runStream(ctx context.Context, r *router.Router, payload router.ActionPayload) error {
	stream, err := r.ActionStream(ctx, c.action, payload)
	if err != nil {
		return err
	}
	defer stream.Close()

	for delta, err := range stream.All() {
		if err != nil {
			fmt.Fprintln(c.out)
			return err
		}
		fmt.Fprint(c.out, delta)
	}
	fmt.Fprintln(c.out)
	return nil
}

// text picks the input from the arguments, then --selection, then a piped
// stdin.
func (c *actionCommander) text(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if c.selection != "" {
		return strings.TrimSpace(c.selection), nil
	}

	if f, ok := c.in.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("checking stdin: %w", err)
		}
		if fi.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}

	data, err := io.ReadAll(c.in)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cliui.IsTerminal(f)
}
