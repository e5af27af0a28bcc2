package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/prompt"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/sse"
)

// StreamEvent is the payload of one "data: " line of a chat stream. Content
// carries a delta; Error reports a failure after the stream started.
type StreamEvent struct {
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleChatStream streams a chat reply as server-sent events.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var payload router.ChatPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.router.ChatStream(ctx, payload)
	if err != nil {
		cancel()
		return s.fail(c, err)
	}
	return s.writeStream(c, stream, cancel)
}

// handleActionStream streams a context action (ask, explain, translate,
// summarize) as server-sent events.
func (s *Server) handleActionStream(c *fiber.Ctx) error {
	action, err := prompt.ParseAction(c.Params("action"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	var payload router.ActionPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.router.ActionStream(ctx, action, payload)
	if err != nil {
		cancel()
		return s.fail(c, err)
	}
	return s.writeStream(c, stream, cancel)
}

// writeStream copies the deltas to the client. Errors before the first delta
// have already been mapped to a status by the caller, so anything failing
// here is reported in-band followed by the sentinel.
//
// The body is an io.Pipe handed to fasthttp's SetBodyStream: each write
// blocks until fasthttp has sent the chunk, which keeps deltas flowing one
// at a time instead of being buffered behind SetBodyStreamWriter.
func (s *Server) writeStream(c *fiber.Ctx, stream *router.ChatStream, cancel context.CancelFunc) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		defer pw.Close()
		defer stream.Close()

		w := bufio.NewWriter(pw)
		if err := writeEvent(w, StreamEvent{ConversationID: stream.ConversationID()}); err != nil {
			return
		}

		for delta, err := range stream.All() {
			if err != nil {
				s.logger.Warn("chat stream interrupted", "conversation_id", stream.ConversationID(), "error", err)
				_ = writeEvent(w, StreamEvent{Error: err.Error()})
				break
			}
			if err := writeEvent(w, StreamEvent{Content: delta}); err != nil {
				s.logger.Debug("client went away", "conversation_id", stream.ConversationID(), "error", err)
				return
			}
		}
		_ = sse.WriteDone(w)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func writeEvent(w *bufio.Writer, ev StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return sse.WriteData(w, string(payload))
}
