// Package sse decodes the line-oriented server-sent event framing used by
// chat completion endpoints, and writes the same framing back out for the
// cometx HTTP service.
//
// Only "data: " lines carry payloads. Event types, ids and retry fields are
// not used by the completion endpoints and are skipped like any other line.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

const (
	// DataPrefix is the literal prefix of a payload line.
	DataPrefix = "data: "

	// DoneSentinel is the payload that marks the end of a completion stream.
	DoneSentinel = "[DONE]"

	// DoneLine is the full sentinel line as it appears on the wire.
	DoneLine = DataPrefix + DoneSentinel
)
