// Package sqlite provides a SQLite-backed history store using ent's SQL
// dialect: ent migrates the schema and builds every statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/cometx/pkg/history"
)

// Store implements history.Store on a SQLite database.
type Store struct {
	drv *entsql.Driver
	b   *entsql.DialectBuilder
}

// NewStore opens (creating if needed) the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and the foreign_keys
	// pragma in force for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Wrap the database connection with ent's SQL driver
	drv := entsql.OpenDB(dialect.SQLite, db)

	if err := migrate(context.Background(), drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{drv: drv, b: entsql.Dialect(dialect.SQLite)}, nil
}

func (s *Store) Append(ctx context.Context, rec history.Record) (*history.Conversation, error) {
	if len(rec.Messages) == 0 {
		return nil, history.ErrNoMessages
	}

	msgs := make([]history.Message, len(rec.Messages))
	copy(msgs, rec.Messages)
	history.Normalize(msgs)

	id := rec.ConversationID
	if id == "" {
		id = history.NewID()
	}
	now := toMillis(time.Now())

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count, found, err := s.messageCount(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	var query string
	var args []any
	if found {
		query, args = s.b.Update(conversationsTable.Name).
			Set(conversationMessageCount, count+len(msgs)).
			Set(conversationUpdatedAt, now).
			Where(entsql.EQ(conversationID, id)).
			Query()
	} else {
		query, args = s.b.Insert(conversationsTable.Name).
			Columns(conversationID, conversationTitle, conversationPageURL,
				conversationMessageCount, conversationCreatedAt, conversationUpdatedAt).
			Values(id, history.Title(msgs), rec.PageURL, len(msgs), now, now).
			Query()
	}
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	insert := s.b.Insert(messagesTable.Name).
		Columns(messageID, messageConversationID, messagePosition,
			messageRole, messageContent, messageStatus, messageCreatedAt)
	for i, m := range msgs {
		insert.Values(m.ID, id, count+i, m.Role, m.Content, m.Status, toMillis(m.Timestamp))
	}
	query, args = insert.Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return nil, fmt.Errorf("insert messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	return s.summary(ctx, id)
}

func (s *Store) Get(ctx context.Context, id string) (*history.Conversation, error) {
	conv, err := s.summary(ctx, id)
	if err != nil {
		return nil, err
	}

	query, args := s.b.Select(messageID, messageRole, messageContent, messageStatus, messageCreatedAt).
		From(s.b.Table(messagesTable.Name)).
		Where(entsql.EQ(messageConversationID, id)).
		OrderBy(entsql.Asc(messagePosition)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m  history.Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = fromMillis(ts)
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return conv, nil
}

func (s *Store) List(ctx context.Context) ([]*history.Conversation, error) {
	query, args := s.selectSummary().
		OrderBy(entsql.Desc(conversationUpdatedAt), entsql.Desc(conversationCreatedAt)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	out := []*history.Conversation{}
	for rows.Next() {
		conv, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query, args := s.b.Delete(conversationsTable.Name).
		Where(entsql.EQ(conversationID, id)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n == 0 {
		return history.NotFoundError{ID: id}
	}
	return nil
}

func (s *Store) Close() error {
	return s.drv.Close()
}

// messageCount reads the stored message count of a conversation. found is
// false for a conversation that does not exist yet.
func (s *Store) messageCount(ctx context.Context, q dialect.Tx, id string) (count int, found bool, err error) {
	query, args := s.b.Select(conversationMessageCount).
		From(s.b.Table(conversationsTable.Name)).
		Where(entsql.EQ(conversationID, id)).
		Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return 0, false, fmt.Errorf("query message count: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	if err := rows.Scan(&count); err != nil {
		return 0, false, fmt.Errorf("scan message count: %w", err)
	}
	return count, true, nil
}

func (s *Store) selectSummary() *entsql.Selector {
	return s.b.Select(conversationID, conversationTitle, conversationPageURL,
		conversationMessageCount, conversationCreatedAt, conversationUpdatedAt).
		From(s.b.Table(conversationsTable.Name))
}

func (s *Store) summary(ctx context.Context, id string) (*history.Conversation, error) {
	query, args := s.selectSummary().
		Where(entsql.EQ(conversationID, id)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query conversation: %w", err)
		}
		return nil, history.NotFoundError{ID: id}
	}
	return scanSummary(rows)
}

func scanSummary(rows *entsql.Rows) (*history.Conversation, error) {
	var (
		conv             history.Conversation
		created, updated int64
	)
	if err := rows.Scan(&conv.ID, &conv.Title, &conv.PageURL, &conv.MessageCount, &created, &updated); err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.CreatedAt = fromMillis(created)
	conv.UpdatedAt = fromMillis(updated)
	return &conv, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
