package router

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/cometx/pkg/azure"
	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/prompt"
)

// ChatStream is a streaming chat reply. The exchange is recorded once the
// deltas run out without error; abandoned or failed streams are not stored.
type ChatStream struct {
	stream  *azure.Stream
	router  *Router
	ctx     context.Context
	payload ChatPayload

	conversationID string
	deployment     string
	started        time.Time

	once sync.Once
}

// ConversationID is known before the first delta so clients can resume.
func (s *ChatStream) ConversationID() string {
	return s.conversationID
}

// All yields text deltas in arrival order. See azure.Stream.All.
func (s *ChatStream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var b strings.Builder
		for delta, err := range s.stream.All() {
			if err != nil {
				yield("", err)
				return
			}
			b.WriteString(delta)
			if !yield(delta, nil) {
				return
			}
		}
		s.finish(b.String())
	}
}

// Close abandons the stream.
func (s *ChatStream) Close() error {
	return s.stream.Close()
}

func (s *ChatStream) finish(reply string) {
	s.once.Do(func() {
		s.router.record(context.WithoutCancel(s.ctx), exchange{
			conversationID: s.conversationID,
			pageURL:        pageURL(s.payload.Context),
			deployment:     s.deployment,
			messages:       s.payload.Messages,
			reply:          reply,
			streaming:      true,
			started:        s.started,
		})
	})
}

// ChatStream starts a streaming chat. Errors returned here happen before
// any delta (configuration, transport, or a non-2xx reply).
func (r *Router) ChatStream(ctx context.Context, p ChatPayload) (*ChatStream, error) {
	if len(p.Messages) == 0 {
		return nil, &PayloadError{Type: TypeChat, Reason: "messages are required"}
	}

	client, opts, err := r.Client(ctx)
	if err != nil {
		return nil, err
	}

	if p.ConversationID == "" {
		p.ConversationID = history.NewID()
	}

	started := time.Now()
	stream, err := client.CompleteStream(ctx, prompt.Conversation(p.Context, p.Messages), opts)
	if err != nil {
		r.logger.Warn("chat stream failed", "deployment", client.Config().Deployment, "error", err)
		return nil, err
	}

	return &ChatStream{
		stream:         stream,
		router:         r,
		ctx:            ctx,
		payload:        p,
		conversationID: p.ConversationID,
		deployment:     client.Config().Deployment,
		started:        started,
	}, nil
}

// ActionStream is the streaming form of Action.
func (r *Router) ActionStream(ctx context.Context, action prompt.Action, p ActionPayload) (*ChatStream, error) {
	payload, err := r.actionChat(ctx, action, p)
	if err != nil {
		return nil, err
	}
	return r.ChatStream(ctx, payload)
}
