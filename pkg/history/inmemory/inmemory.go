// Package inmemory is the default history store. Conversations are lost on
// restart.
package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/cometx/pkg/history"
)

// Store implements history.Store using an in-memory map.
type Store struct {
	// mu guards conversations
	mu sync.RWMutex

	conversations map[string]*history.Conversation
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*history.Conversation),
	}
}

func (s *Store) Append(_ context.Context, rec history.Record) (*history.Conversation, error) {
	if len(rec.Messages) == 0 {
		return nil, history.ErrNoMessages
	}

	msgs := slices.Clone(rec.Messages)
	history.Normalize(msgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := rec.ConversationID
	if id == "" {
		id = history.NewID()
	}

	conv, ok := s.conversations[id]
	if !ok {
		conv = &history.Conversation{
			ID:        id,
			Title:     history.Title(msgs),
			PageURL:   rec.PageURL,
			CreatedAt: now,
		}
		s.conversations[id] = conv
	}

	conv.Messages = append(conv.Messages, msgs...)
	conv.MessageCount = len(conv.Messages)
	conv.UpdatedAt = now

	return summary(conv), nil
}

func (s *Store) Get(_ context.Context, id string) (*history.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, history.NotFoundError{ID: id}
	}

	out := *conv
	out.Messages = slices.Clone(conv.Messages)
	return &out, nil
}

func (s *Store) List(_ context.Context) ([]*history.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*history.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, summary(conv))
	}

	slices.SortFunc(out, func(a, b *history.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return history.NotFoundError{ID: id}
	}
	delete(s.conversations, id)
	return nil
}

func (s *Store) Close() error {
	return nil
}

// summary copies conv without its messages.
func summary(conv *history.Conversation) *history.Conversation {
	out := *conv
	out.Messages = nil
	return &out
}
