package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

const defaultChunkSize = 4096

// Reader splits an incremental byte stream into lines and returns the
// payload of every "data: " line in arrival order.
//
// ┌──────────────────┐
// │ source io.Reader │  chunks of arbitrary size
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │ pending + chunk  │  split on '\n', residual kept for the next chunk
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │  trimmed "data: " payloads, sentinel ends the stream
// └──────────────────┘
//
// A trailing partial line at end of input is never returned: only complete,
// newline-terminated lines are considered.
type Reader struct {
	src     io.Reader
	chunk   []byte
	pending []byte
	lines   []string

	// err is the terminal condition reported once lines are exhausted.
	err error
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:   src,
		chunk: make([]byte, defaultChunkSize),
	}
}

// Next returns the next data payload. It blocks while waiting for more bytes
// from the source. Next returns io.EOF when the source is exhausted or the
// DoneLine sentinel was seen; any other error comes from the source.
// Once Next returns an error every later call returns the same error.
func (r *Reader) Next() (string, error) {
	for {
		for len(r.lines) > 0 {
			line := strings.TrimSpace(r.lines[0])
			r.lines = r.lines[1:]

			if line == "" {
				continue
			}

			if line == DoneLine {
				r.finish()
				return "", io.EOF
			}

			payload, ok := strings.CutPrefix(line, DataPrefix)
			if !ok {
				// Comments, heartbeats and non-data fields.
				continue
			}
			return payload, nil
		}

		if r.err != nil {
			return "", r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.feed(r.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.err = io.EOF
			} else {
				r.err = err
			}
		}
	}
}

// feed appends a chunk to the pending buffer and moves every complete line
// into the line queue.
func (r *Reader) feed(chunk []byte) {
	r.pending = append(r.pending, chunk...)

	for {
		idx := bytes.IndexByte(r.pending, '\n')
		if idx < 0 {
			break
		}
		r.lines = append(r.lines, string(r.pending[:idx]))
		r.pending = r.pending[idx+1:]
	}

	// Compact so the backing array does not grow without bound.
	if len(r.pending) == 0 {
		r.pending = r.pending[:0:0]
	}
}

// finish discards everything after the sentinel, including the rest of the
// source. Errors while draining are not reported.
func (r *Reader) finish() {
	r.lines = nil
	r.pending = nil
	if r.err == nil {
		_, _ = io.Copy(io.Discard, r.src)
	}
	r.err = io.EOF
}
