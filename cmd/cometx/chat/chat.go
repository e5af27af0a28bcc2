// Package chatcmder provides the chat command for an interactive streaming
// conversation, optionally about a web page.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/session"
	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/utils"
)

type chatCommander struct {
	flags          session.Flags
	url            string
	conversationID string
	raw            bool

	in  io.Reader
	out io.Writer
}

const chatLongDesc string = `Start an interactive chat session.

Replies stream as they arrive. When stdout is a terminal the finished reply
is rendered as markdown; pass --raw to print the text as it streams.

With --url the page is fetched first and its title, description and
content are given to the assistant as context. With --conversation an
earlier conversation from the history store is resumed.

Examples:
  cometx chat
  cometx chat --url https://go.dev/blog/intro-generics
  cometx chat --sqlite ~/.cometx/history.db --conversation <id>`

const chatShortDesc string = "Interactive chat with the assistant"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd)
		},
	}

	session.AddModelFlags(cmd, &cmder.flags)
	session.AddStorageFlags(cmd, &cmder.flags)
	cmd.Flags().StringVarP(&cmder.url, "url", "u", "", "Page to chat about")
	cmd.Flags().StringVarP(&cmder.conversationID, "conversation", "c", "", "Resume a stored conversation")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print replies as plain text while they stream")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	sess, err := session.Open(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		pc       *page.Context
		messages []llm.Message
	)

	fmt.Fprintln(c.out)
	if c.url != "" {
		err := cliui.Step(c.out, "Reading "+c.url, func() error {
			var err error
			pc, err = sess.Router.Extract(ctx, c.url)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Page:"), cliui.NameStyle.Render(utils.Truncate(pc.Title, 60)))
	}

	if c.conversationID != "" {
		conv, err := sess.Router.History().Get(ctx, c.conversationID)
		if err != nil {
			return err
		}
		messages = conv.ToLLM()
		fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(conv.Title, 40)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(messages))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(sess.Config.Azure.Deployment),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	render := !c.raw && isTerminal(c.out)
	conversationID := c.conversationID
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		messages = append(messages, llm.NewTextMessage(llm.RoleUser, input))

		reply, id, err := c.exchange(ctx, sess.Router, router.ChatPayload{
			Messages:       messages,
			Context:        pc,
			ConversationID: conversationID,
		}, render)
		if err != nil {
			fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
			// Drop the failed turn so it can be retried
			messages = messages[:len(messages)-1]
			continue
		}

		conversationID = id
		messages = append(messages, llm.NewTextMessage(llm.RoleAssistant, reply))
	}

	fmt.Fprintln(c.out)
	return scanner.Err()
}

// exchange streams one reply. It returns the full text and the
// conversation it was stored under.
func (c *chatCommander) exchange(ctx context.Context, r *router.Router, payload router.ChatPayload, render bool) (string, string, error) {
	stream, err := r.ChatStream(ctx, payload)
	if err != nil {
		return "", "", err
	}
	defer stream.Close()

	var b strings.Builder
	if render {
		err := cliui.Step(c.out, cliui.DimStyle.Render("thinking"), func() error {
			for delta, err := range stream.All() {
				if err != nil {
					return err
				}
				b.WriteString(delta)
			}
			return nil
		})
		if err != nil {
			return "", "", err
		}

		out, renderErr := cliui.RenderMarkdown(b.String())
		if renderErr != nil {
			out = b.String() + "\n"
		}
		fmt.Fprint(c.out, out)
		return b.String(), stream.ConversationID(), nil
	}

	fmt.Fprint(c.out, cliui.AssistantPrompt)
	for delta, err := range stream.All() {
		if err != nil {
			fmt.Fprintln(c.out)
			return "", "", err
		}
		b.WriteString(delta)
		fmt.Fprint(c.out, delta)
	}
	fmt.Fprint(c.out, "\n\n")

	return b.String(), stream.ConversationID(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && cliui.IsTerminal(f)
}
