package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/prompt"
	"github.com/papercomputeco/cometx/pkg/router"
)

var (
	analyzeToolName    = "analyze_page"
	analyzeDescription = "Fetch a web page and return its title, description and readable text content."

	actionToolName    = "page_action"
	actionDescription = "Run a Comet-X action (ask, explain, translate or summarize) on a piece of text, optionally using a web page as context. Summarize with a url and no text summarizes the whole page."

	conversationsToolName    = "list_conversations"
	conversationsDescription = "List stored Comet-X conversations, most recently updated first."
)

// defaultContentRunes caps the page text returned by analyze_page.
const defaultContentRunes = 8000

// AnalyzeInput represents the input arguments for the analyze_page tool.
type AnalyzeInput struct {
	URL      string `json:"url" jsonschema:"the http or https URL of the page to read"`
	MaxRunes int    `json:"max_runes,omitempty" jsonschema:"maximum characters of page text to return (default: 8000)"`
}

// AnalyzeOutput represents the output of the analyze_page tool.
type AnalyzeOutput struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
	Truncated   bool   `json:"truncated"`
}

// ActionInput represents the input arguments for the page_action tool.
type ActionInput struct {
	Action         string `json:"action" jsonschema:"one of ask, explain, translate, summarize"`
	Text           string `json:"text,omitempty" jsonschema:"the text to act on; the question for ask"`
	URL            string `json:"url,omitempty" jsonschema:"optional page to use as context"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"optional conversation to continue"`
}

// ActionOutput represents the output of the page_action tool.
type ActionOutput struct {
	Action         string `json:"action"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

// ConversationsInput represents the input arguments for the list_conversations tool.
type ConversationsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of conversations to return (default: 20)"`
}

// ConversationSummary is one entry of list_conversations.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PageURL      string    `json:"page_url,omitempty"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationsOutput represents the output of the list_conversations tool.
type ConversationsOutput struct {
	Conversations []ConversationSummary `json:"conversations"`
	Count         int                   `json:"count"`
	Total         int                   `json:"total"`
}

func (s *Server) handleAnalyze(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	if input.URL == "" {
		return toolError("url is required"), AnalyzeOutput{}, nil
	}

	s.config.Logger.Debug("MCP analyze request", "url", input.URL)

	pc, err := s.config.Router.Extract(ctx, input.URL)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to read page: %v", err)), AnalyzeOutput{}, nil
	}

	limit := input.MaxRunes
	if limit <= 0 {
		limit = defaultContentRunes
	}
	content := page.TruncateRunes(pc.Content, limit)

	return textResult(AnalyzeOutput{
		URL:         pc.URL,
		Title:       pc.Title,
		Description: pc.Description(),
		Content:     content,
		Truncated:   len(content) < len(pc.Content),
	})
}

func (s *Server) handleAction(ctx context.Context, _ *mcp.CallToolRequest, input ActionInput) (*mcp.CallToolResult, ActionOutput, error) {
	action, err := prompt.ParseAction(input.Action)
	if err != nil {
		return toolError(err.Error()), ActionOutput{}, nil
	}

	s.config.Logger.Debug("MCP action request",
		"action", string(action),
		"url", input.URL,
		"conversation_id", input.ConversationID,
	)

	result, err := s.config.Router.Action(ctx, action, router.ActionPayload{
		Text:           input.Text,
		PageURL:        input.URL,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		return toolError(fmt.Sprintf("%s failed: %v", action, err)), ActionOutput{}, nil
	}

	return textResult(ActionOutput{
		Action:         string(action),
		Content:        result.Content,
		ConversationID: result.ConversationID,
	})
}

func (s *Server) handleConversations(ctx context.Context, _ *mcp.CallToolRequest, input ConversationsInput) (*mcp.CallToolResult, ConversationsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	convs, err := s.config.Router.History().List(ctx)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to list conversations: %v", err)), ConversationsOutput{}, nil
	}

	output := ConversationsOutput{
		Conversations: []ConversationSummary{},
		Total:         len(convs),
	}
	for _, c := range convs[:min(limit, len(convs))] {
		output.Conversations = append(output.Conversations, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			PageURL:      c.PageURL,
			MessageCount: c.MessageCount,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	output.Count = len(output.Conversations)

	return textResult(output)
}

// textResult renders output as the JSON text content of a tool result,
// alongside the structured output.
func textResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
