// Package chat defines the data model shared between the stream decoder and
// its consumers: the final message record, media metadata, and structured
// tool results recovered from the side channel.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// RoleAssistant is the role carried by every decoded message. The decoder
// only ever reconstructs assistant turns; user turns never travel through it.
const RoleAssistant = "assistant"

// ContentTypeText is the only content type the decoder currently produces.
const ContentTypeText = "text"

// Message is the terminal, immutable artifact of one decode cycle.
// It is assembled exactly once per completed stream and handed to the
// message store; no field is mutated afterwards.
type Message struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"` // RFC 3339, UTC
	Metadata  Metadata `json:"metadata"`
}

// Metadata carries the content-shape annotations for a message.
type Metadata struct {
	ContentTypes []string    `json:"content_types"`
	HasMedia     bool        `json:"has_media"`
	MediaItems   []MediaItem `json:"media_items"`
}

// MediaItem is a single media reference discovered in a decoded response,
// either passed through from the backend or extracted from markdown/raw URLs.
type MediaItem struct {
	Type  string `json:"type"` // currently always "image"
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// MediaTypeImage is the media item type for image references.
const MediaTypeImage = "image"

// ToolResult is a structured side-channel payload describing the outcome of
// a backend tool invocation, recovered (best effort) from a tool result frame.
type ToolResult struct {
	Action  string         `json:"action"`
	Status  string         `json:"status"` // "success", "error", or backend-specific
	Data    map[string]any `json:"data"`
	Success bool           `json:"success"`
}

// NewMessage assembles a message record with a fresh id and the current UTC
// timestamp. Content types default to text; HasMedia tracks the media slice.
func NewMessage(content string, media []MediaItem) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata: Metadata{
			ContentTypes: []string{ContentTypeText},
			HasMedia:     len(media) > 0,
			MediaItems:   media,
		},
	}
}
