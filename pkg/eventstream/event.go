package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/xenophobed/isastream/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessageReceived is emitted after a streamed response is
	// assembled into a message.
	EventTypeMessageReceived = "isastream.message.received"
)

// MessageReceivedEvent is a transport-neutral event payload for an assembled
// message.
type MessageReceivedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Message       chat.Message `json:"message"`
}

// EventSource identifies the session and backend the message came from.
type EventSource struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model,omitempty"`
	Backend   string `json:"backend,omitempty"`
}

// NewMessageReceivedEvent wraps a message in a versioned event envelope with
// a fresh event ID and the current UTC emission time.
func NewMessageReceivedEvent(source EventSource, msg chat.Message) *MessageReceivedEvent {
	return &MessageReceivedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMessageReceived,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Message:       msg,
	}
}
