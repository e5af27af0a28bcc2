// Package prompt builds the messages sent to the model: a system prompt that
// carries the page context, and user prompts for the one-shot actions.
package prompt

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/page"
)

// ContextRunes is how much page content is quoted in the system prompt.
const ContextRunes = 3000

const rules = `You are Comet-X, an intelligent browser assistant. You help users understand content and answer their questions.

Rules:
- Answer in the same language as the question
- Be concise and accurate
- Use Markdown for formatting when helpful
- If you don't know the answer, say so clearly`

// SystemPrompt returns the assistant rules followed, when pc is non-nil, by
// a summary of the page.
func SystemPrompt(pc *page.Context) string {
	if pc == nil {
		return rules
	}

	var b strings.Builder
	b.WriteString(rules)
	b.WriteString("\n\n--- Current page context ---\n")
	fmt.Fprintf(&b, "Title: %s\n", pc.Title)
	fmt.Fprintf(&b, "URL: %s\n", pc.URL)
	if pc.SelectedText != "" {
		fmt.Fprintf(&b, "Selected text: %s\n", pc.SelectedText)
	}
	if d := pc.Description(); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	b.WriteString("\nPage content (abridged):\n")
	b.WriteString(page.TruncateRunes(pc.Content, ContextRunes))
	b.WriteString("...")
	return b.String()
}

// Conversation returns the system prompt for pc followed by history verbatim.
func Conversation(pc *page.Context, history []llm.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.NewTextMessage(llm.RoleSystem, SystemPrompt(pc)))
	return append(msgs, history...)
}
