// Package analyzecmder provides the analyze command that prints the context
// extracted from a web page.
package analyzecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/session"
	"github.com/papercomputeco/cometx/pkg/cliui"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/utils"
)

const analyzeLongDesc string = `Fetch a page and print the context the assistant would see: title,
metadata, images and the visible text (truncated for display).

Examples:
  cometx analyze https://go.dev/blog/intro-generics
  cometx analyze --json https://go.dev/blog/intro-generics | jq .metadata`

const analyzeShortDesc string = "Print the context extracted from a page"

func NewAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.Open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			pc, err := sess.Router.Extract(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pc)
			}
			printContext(cmd.OutOrStdout(), pc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the context as JSON")

	return cmd
}

func printContext(w io.Writer, pc *page.Context) {
	field := func(key, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render(pc.Title))
	field("URL:", pc.URL)
	if md := pc.Metadata; md != nil {
		field("Description:", md.Description)
		field("Keywords:", strings.Join(md.Keywords, ", "))
		field("Author:", md.Author)
		field("Published:", md.PublishedDate)
		if len(md.Images) > 0 {
			field("Images:", fmt.Sprintf("%d", len(md.Images)))
			for _, img := range md.Images {
				fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(cliui.Truncate(img, 100)))
			}
		}
	}
	field("Length:", fmt.Sprintf("%d characters", len([]rune(pc.Content))))

	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render(utils.Preview(pc.Content, 500)))
}
