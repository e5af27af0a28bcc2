package prompt

import (
	"fmt"
	"strings"
)

// Action is a one-shot request on a piece of text.
type Action string

const (
	ActionAsk       Action = "ask"
	ActionExplain   Action = "explain"
	ActionTranslate Action = "translate"
	ActionSummarize Action = "summarize"
)

// Actions lists every action in menu order.
var Actions = []Action{ActionAsk, ActionExplain, ActionTranslate, ActionSummarize}

// ParseAction resolves a case-insensitive action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ActionPrompt returns the user message for action applied to text. For
// ActionSummarize an empty text means the whole page in the system prompt.
// language is the translation target and defaults to Arabic.
func ActionPrompt(action Action, text, language string) string {
	text = strings.TrimSpace(text)
	switch action {
	case ActionExplain:
		return fmt.Sprintf("Explain the following clearly and simply:\n\n%s", text)
	case ActionTranslate:
		return fmt.Sprintf("Translate the following into %s. Reply with the translation only:\n\n%s",
			languageName(language), text)
	case ActionSummarize:
		if text == "" {
			return "Summarize the current page in a few bullet points."
		}
		return fmt.Sprintf("Summarize the following in a few bullet points:\n\n%s", text)
	default:
		return text
	}
}

func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "", "ar":
		return "Arabic"
	default:
		return code
	}
}
