package router

import (
	"context"
	"time"

	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/llm"
)

// exchange is one finished request/reply pair.
type exchange struct {
	conversationID string
	pageURL        string
	deployment     string
	messages       []llm.Message
	reply          string
	streaming      bool
	started        time.Time
}

// record appends the exchange to history and publishes it. Failures are
// logged; the reply has already been produced and is still returned. It
// returns the conversation ID the exchange was stored under.
func (r *Router) record(ctx context.Context, ex exchange) string {
	if ex.conversationID == "" {
		ex.conversationID = history.NewID()
	}

	fresh := r.unseen(ctx, ex.conversationID, ex.messages)
	msgs := append(history.FromLLM(fresh...), history.NewMessage(llm.RoleAssistant, ex.reply))

	if _, err := r.history.Append(ctx, history.Record{
		ConversationID: ex.conversationID,
		PageURL:        ex.pageURL,
		Messages:       msgs,
	}); err != nil {
		r.logger.Warn("failed to record conversation",
			"conversation_id", ex.conversationID,
			"error", err,
		)
	}

	event := eventstream.NewChatCompletedEvent(ex.deployment, ex.messages, ex.reply, ex.started)
	event.ConversationID = ex.conversationID
	event.PageURL = ex.pageURL
	event.Streaming = ex.streaming
	if err := r.publisher.PublishChat(ctx, event); err != nil {
		r.logger.Warn("failed to publish chat event",
			"conversation_id", ex.conversationID,
			"event_id", event.EventID,
			"error", err,
		)
	}

	return ex.conversationID
}

// unseen returns the messages not yet stored for the conversation. Clients
// resend the whole transcript on every turn, so only the tail past the
// stored count is new. When the counts disagree the last message is kept.
func (r *Router) unseen(ctx context.Context, conversationID string, msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return nil
	}

	stored := 0
	conv, err := r.history.Get(ctx, conversationID)
	switch {
	case err == nil:
		stored = conv.MessageCount
	case !history.IsNotFound(err):
		r.logger.Debug("history lookup failed", "conversation_id", conversationID, "error", err)
	}

	fresh := msgs[min(stored, len(msgs)):]
	if len(fresh) == 0 {
		return msgs[len(msgs)-1:]
	}
	return fresh
}
