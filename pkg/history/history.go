// Package history records chat conversations so they can be listed and
// resumed.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/utils"
)

// Message statuses.
const (
	StatusPending   = "pending"
	StatusStreaming = "streaming"
	StatusComplete  = "complete"
	StatusError     = "error"
)

// titleRunes caps titles derived from the first user message.
const titleRunes = 60

// Message is one stored turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status,omitempty"`
}

// Conversation is an ordered list of messages. List results leave Messages
// empty and report MessageCount instead.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PageURL      string    `json:"pageUrl,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Record is a batch of messages to add to a conversation.
type Record struct {
	// ConversationID selects the conversation. Empty starts a new one with a
	// generated ID; an unknown ID starts a new one with that ID.
	ConversationID string

	// PageURL is stored when the conversation is created.
	PageURL string

	Messages []Message
}

// Store persists conversations.
type Store interface {
	// Append adds rec.Messages to the end of a conversation and returns the
	// updated conversation without its messages.
	Append(ctx context.Context, rec Record) (*Conversation, error)

	// Get returns a conversation with all its messages in order.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns all conversations, most recently updated first.
	List(ctx context.Context) ([]*Conversation, error)

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, id string) error

	Close() error
}

// NewMessage returns a complete message with a fresh ID and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Status:    StatusComplete,
	}
}

// FromLLM converts dialogue messages into stored messages.
func FromLLM(msgs ...llm.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessage(m.Role, m.Content))
	}
	return out
}

// ToLLM returns the conversation as dialogue history.
func (c *Conversation) ToLLM() []llm.Message {
	out := make([]llm.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, llm.NewTextMessage(m.Role, m.Content))
	}
	return out
}

// Normalize fills missing IDs, timestamps and statuses in place.
func Normalize(msgs []Message) {
	now := time.Now().UTC()
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.NewString()
		}
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
		if msgs[i].Status == "" {
			msgs[i].Status = StatusComplete
		}
	}
}

// Title derives a conversation title from the first user message.
func Title(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == llm.RoleUser && m.Content != "" {
			return utils.Preview(m.Content, titleRunes)
		}
	}
	return "New conversation"
}

// NewID returns a conversation ID.
func NewID() string {
	return uuid.NewString()
}
