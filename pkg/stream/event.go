// Package stream decodes the isA chat backend's streaming response protocol.
//
// The backend delivers one JSON document per SSE data frame, discriminated by
// a "type" field. Token fragments arrive on "custom_event" frames nested at
// metadata.raw_chunk.response_token.token; the fragments jointly form a JSON
// document whose assistant-visible text must be carved out on the fly. The
// decoder reconstructs three outputs in real time: content deltas for live
// rendering, side-channel events (workflow progress, tool lifecycle, tool
// results, media), and one final immutable message record.
package stream

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Wire event types carried in the "type" discriminant.
const (
	TypeStart         = "start"
	TypeNodeUpdate    = "node_update"
	TypeToolExecuting = "tool_executing"
	TypeToolCompleted = "tool_completed"
	TypeToolResultMsg = "tool_result_msg"
	TypeCustomEvent   = "custom_event"
	TypeContent       = "content"
	TypeEnd           = "end"
)

// envelope is the wire shape of a single stream event. Only the fields
// relevant to the recognized type are ever populated by the backend.
type envelope struct {
	Type     string          `json:"type"`
	Content  json.RawMessage `json:"content,omitempty"`
	Node     string          `json:"node,omitempty"`
	Status   string          `json:"status,omitempty"`
	Action   string          `json:"action,omitempty"`
	Metadata *eventMetadata  `json:"metadata,omitempty"`
}

type eventMetadata struct {
	RawChunk *rawChunk `json:"raw_chunk,omitempty"`
}

type rawChunk struct {
	ResponseToken *responseToken `json:"response_token,omitempty"`
}

type responseToken struct {
	Token string `json:"token"`
}

// Event is a classified stream event. Exactly one of the payload fields is
// meaningful, selected by Type.
type Event struct {
	Type string

	// Token is the raw token fragment of a custom_event frame.
	Token string

	// Content is the payload of content and tool_result_msg frames. For
	// content frames carrying a JSON object it holds the object's raw text.
	Content string

	// Node and Status describe workflow progress on node_update frames;
	// Action names the tool on tool lifecycle frames.
	Node   string
	Status string
	Action string
}

// classify parses a raw SSE payload and tags it as one of the recognized
// event kinds. Unparsable payloads and unrecognized types return ok=false:
// both are dropped with a diagnostic, never an error, so one malformed line
// cannot abort the stream. custom_event frames without a token at the nested
// path are likewise skipped (they carry backend-internal chatter).
func classify(raw string, logger *zap.Logger) (Event, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logger.Debug("dropping unparsable stream frame",
			zap.Error(err),
			zap.String("payload", raw),
		)
		return Event{}, false
	}

	switch env.Type {
	case TypeStart, TypeEnd:
		return Event{Type: env.Type}, true

	case TypeNodeUpdate:
		return Event{Type: env.Type, Node: env.Node, Status: env.Status}, true

	case TypeToolExecuting, TypeToolCompleted:
		return Event{Type: env.Type, Action: env.Action}, true

	case TypeToolResultMsg:
		return Event{Type: env.Type, Content: contentText(env.Content)}, true

	case TypeCustomEvent:
		md := env.Metadata
		if md == nil || md.RawChunk == nil || md.RawChunk.ResponseToken == nil {
			return Event{}, false
		}
		return Event{Type: env.Type, Token: md.RawChunk.ResponseToken.Token}, true

	case TypeContent:
		return Event{Type: env.Type, Content: contentText(env.Content)}, true

	default:
		// Forward-compatibility: unknown types are ignored without error.
		logger.Debug("ignoring unrecognized stream event type",
			zap.String("type", env.Type),
		)
		return Event{}, false
	}
}

// contentText extracts the content payload as a string. Backends send either
// a JSON string or a bare object; objects are passed through as raw JSON text
// for the resolver to unwrap.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}
