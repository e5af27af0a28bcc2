package sqlite

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Column names.
const (
	conversationID           = "id"
	conversationTitle        = "title"
	conversationPageURL      = "page_url"
	conversationMessageCount = "message_count"
	conversationCreatedAt    = "created_at"
	conversationUpdatedAt    = "updated_at"

	messageID             = "id"
	messageConversationID = "conversation_id"
	messagePosition       = "position"
	messageRole           = "role"
	messageContent        = "content"
	messageStatus         = "status"
	messageCreatedAt      = "created_at"
)

// Timestamps are stored as Unix milliseconds.
var (
	conversationColumns = []*schema.Column{
		{Name: conversationID, Type: field.TypeString},
		{Name: conversationTitle, Type: field.TypeString},
		{Name: conversationPageURL, Type: field.TypeString, Default: ""},
		{Name: conversationMessageCount, Type: field.TypeInt, Default: 0},
		{Name: conversationCreatedAt, Type: field.TypeInt64},
		{Name: conversationUpdatedAt, Type: field.TypeInt64},
	}

	conversationsTable = &schema.Table{
		Name:       "conversations",
		Columns:    conversationColumns,
		PrimaryKey: []*schema.Column{conversationColumns[0]},
		Indexes: []*schema.Index{
			{Name: "conversation_updated_at", Columns: []*schema.Column{conversationColumns[5]}},
		},
	}

	messageColumns = []*schema.Column{
		{Name: messageID, Type: field.TypeString},
		{Name: messageConversationID, Type: field.TypeString},
		{Name: messagePosition, Type: field.TypeInt},
		{Name: messageRole, Type: field.TypeString},
		{Name: messageContent, Type: field.TypeString, Size: 2147483647},
		{Name: messageStatus, Type: field.TypeString, Default: ""},
		{Name: messageCreatedAt, Type: field.TypeInt64},
	}

	messagesTable = &schema.Table{
		Name:       "messages",
		Columns:    messageColumns,
		PrimaryKey: []*schema.Column{messageColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "messages_conversations_messages",
				Columns:    []*schema.Column{messageColumns[1]},
				RefColumns: []*schema.Column{conversationColumns[0]},
				RefTable:   conversationsTable,
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_conversation_position",
				Unique:  true,
				Columns: []*schema.Column{messageColumns[1], messageColumns[2]},
			},
		},
	}
)

// migrate creates or extends the history tables. Like ent's generated
// Schema.Create, it only adds tables, columns and indexes.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, conversationsTable, messagesTable)
}
