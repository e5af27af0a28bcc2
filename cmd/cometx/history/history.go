// Package historycmder provides the history command for browsing stored
// conversations.
package historycmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/session"
	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/utils"
)

const historyLongDesc string = `Browse conversations stored in the SQLite history database.

Conversations are only kept between runs when a database is configured with
--sqlite or history.sqlite_path. Without one, the first history.db found in
the config directory, ./.cometx/, ~/.cometx/ or $XDG_DATA_HOME/cometx/ is
used ($COMETX_DB overrides the search).

Examples:
  cometx history list --sqlite ~/.cometx/history.db
  cometx history show <id>
  cometx history delete <id>`

const historyShortDesc string = "Browse stored conversations"

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				convs, err := sess.Router.History().List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(convs) == 0 {
					fmt.Fprintf(out, "\n  %s No conversations.\n\n", cliui.DimStyle.Render("●"))
					return nil
				}
				fmt.Fprintln(out)
				for _, c := range convs {
					fmt.Fprintf(out, "  %s  %s  %s\n",
						cliui.DimStyle.Render(c.ID),
						cliui.NameStyle.Render(utils.Preview(c.Title, 48)),
						cliui.DimStyle.Render(fmt.Sprintf("%d messages, %s", c.MessageCount, c.UpdatedAt.Local().Format(time.DateTime))),
					)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				conv, err := sess.Router.History().Get(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "\n  %s\n", cliui.HeaderStyle.Render(conv.Title))
				if conv.PageURL != "" {
					fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(conv.PageURL))
				}
				fmt.Fprintln(out)
				for _, m := range conv.Messages {
					prompt := cliui.AssistantPrompt
					if m.Role == llm.RoleUser {
						prompt = cliui.UserPrompt
					}
					fmt.Fprintf(out, "%s%s\n\n", prompt, m.Content)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				if err := sess.Router.History().Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted %s\n\n", cliui.SuccessMark, args[0])
				return nil
			})
		},
	}

	for _, sub := range []*cobra.Command{list, show, del} {
		session.AddStorageFlags(sub, &session.Flags{})
		cmd.AddCommand(sub)
	}

	return cmd
}

func withSession(cmd *cobra.Command, fn func(context.Context, *session.Session) error) error {
	sess, err := session.Open(cmd, session.WithHistoryDiscovery())
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, sess)
}
