// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// frame reader for the isA chat backend's response stream. The backend emits
// line-oriented frames of the form "data: <payload>" where the payload is
// either a JSON document or the literal done-sentinel "[DONE]".
//
// This package does not provide SSE writer or server
// capabilities, and it does not implement the full SSE field grammar
// (event:/id:/retry:). The backend only ever sends data lines, and every
// other line is treated as a comment or keep-alive and skipped.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the literal payload that terminates a stream.
const DoneSentinel = "[DONE]"

// Payload is a single decoded data frame from the stream.
type Payload struct {
	// Raw is the trimmed substring following the "data: " prefix.
	// Empty when Done is set.
	Raw string

	// Done reports whether this frame was the terminal "[DONE]" sentinel.
	Done bool
}
