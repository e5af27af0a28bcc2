package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/cometx/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChatCompleted is emitted after a chat completion finishes.
	EventTypeChatCompleted = "cometx.chat.completed"
)

// ChatCompletedEvent is a transport-neutral event payload for one completed
// chat exchange.
type ChatCompletedEvent struct {
	SchemaVersion  int           `json:"schema_version"`
	EventType      string        `json:"event_type"`
	EventID        string        `json:"event_id"`
	EmittedAt      time.Time     `json:"emitted_at"`
	Deployment     string        `json:"deployment"`
	ConversationID string        `json:"conversation_id,omitempty"`
	PageURL        string        `json:"page_url,omitempty"`
	Streaming      bool          `json:"streaming"`
	DurationMs     int64         `json:"duration_ms"`
	Request        []llm.Message `json:"request"`
	Response       llm.Message   `json:"response"`
}

// NewChatCompletedEvent fills in the envelope fields of a chat event.
func NewChatCompletedEvent(deployment string, request []llm.Message, response string, started time.Time) *ChatCompletedEvent {
	now := time.Now().UTC()
	return &ChatCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeChatCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now,
		Deployment:    deployment,
		DurationMs:    now.Sub(started).Milliseconds(),
		Request:       request,
		Response:      llm.NewTextMessage(llm.RoleAssistant, response),
	}
}
