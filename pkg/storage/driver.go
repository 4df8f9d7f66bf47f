// Package storage
package storage

import (
	"context"

	"github.com/xenophobed/isastream/pkg/chat"
)

// Store defines the interface for persisting assembled messages in a storage
// backend. The decoder hands each completed message to a Store (usually via
// the worker pool) so that session history survives the stream that produced
// it.
type Store interface {
	// Put stores a message under a session. Returns true if the message was
	// newly inserted, false if a message with the same ID already exists.
	// Duplicate puts are a no-op, which makes retries safe.
	Put(ctx context.Context, sessionID string, msg *chat.Message) (bool, error)

	// Get retrieves a message by its ID.
	Get(ctx context.Context, id string) (*chat.Message, error)

	// Has checks if a message exists by its ID.
	Has(ctx context.Context, id string) (bool, error)

	// List returns all messages for a session in arrival order.
	List(ctx context.Context, sessionID string) ([]*chat.Message, error)

	// Sessions returns the distinct session IDs present in the store.
	Sessions(ctx context.Context) ([]string, error)

	// Close closes the store and releases any resources.
	Close() error
}
