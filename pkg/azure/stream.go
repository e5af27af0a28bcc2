package azure

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/cometx/pkg/sse"
)

// Stream is a single-pass, non-restartable sequence of text deltas.
//
// The underlying response body is released when the sequence ends, when a
// read fails, or when Close is called, whichever happens first. Close may be
// called from another goroutine to abandon a blocked Next.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	logger *slog.Logger

	// err is the terminal result returned by every Next after the end.
	err error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(body io.ReadCloser, l *slog.Logger) *Stream {
	return &Stream{
		body:   body,
		reader: sse.NewReader(body),
		logger: l,
	}
}

// Next returns the next non-empty delta in arrival order. It returns io.EOF
// once the sequence is exhausted, *TransportError if the connection fails
// mid-stream, and ErrStreamClosed after Close.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.closed.Load() {
		s.err = ErrStreamClosed
		return "", s.err
	}

	for {
		payload, err := s.reader.Next()
		if err != nil {
			switch {
			case s.closed.Load():
				s.err = ErrStreamClosed
			case errors.Is(err, io.EOF):
				s.err = io.EOF
			default:
				s.err = &TransportError{Op: "read stream", Err: err}
			}
			_ = s.Close()
			return "", s.err
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Debug("skipping malformed stream frame", "error", err)
			continue
		}

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

// Close releases the connection. It is safe to call more than once and
// concurrently with Next.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// All adapts the stream for range-over-func. Breaking out of the loop closes
// the stream. A failure is yielded once as ("", err) and ends the sequence.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		for {
			delta, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// Collect consumes the whole stream and returns the concatenated deltas.
// On failure it returns the text received so far together with the error.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for delta, err := range s.All() {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(delta)
	}
	return b.String(), nil
}
