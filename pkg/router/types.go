package router

import (
	"encoding/json"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/page"
)

// MessageType names a request handled by the Router.
type MessageType string

const (
	TypeChat         MessageType = "CHAT"
	TypeAnalyzePage  MessageType = "ANALYZE_PAGE"
	TypeGetSelection MessageType = "GET_SELECTION"
	TypeAsk          MessageType = "ASK"
	TypeSummarize    MessageType = "SUMMARIZE"
	TypeExplain      MessageType = "EXPLAIN"
	TypeTranslate    MessageType = "TRANSLATE"
	TypeGetSettings  MessageType = "GET_SETTINGS"
	TypeSaveSettings MessageType = "SAVE_SETTINGS"
)

// Request is the envelope clients send.
type Request struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope returned for every Request.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatPayload is the body of CHAT requests and of streaming chats.
type ChatPayload struct {
	Messages       []llm.Message `json:"messages"`
	Context        *page.Context `json:"context,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// ChatResult is the data of a successful chat.
type ChatResult struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId"`
}

// AnalyzePayload is the body of ANALYZE_PAGE requests.
type AnalyzePayload struct {
	URL string `json:"url"`
}

// SelectionPayload is the body of GET_SELECTION requests.
type SelectionPayload struct {
	Text    string        `json:"text,omitempty"`
	Context *page.Context `json:"context,omitempty"`
}

// ActionPayload is the body of ASK, SUMMARIZE, EXPLAIN and TRANSLATE
// requests. When Context is nil and PageURL is set the page is fetched.
type ActionPayload struct {
	Text           string        `json:"text,omitempty"`
	PageURL        string        `json:"pageUrl,omitempty"`
	Context        *page.Context `json:"context,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}
