package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/storage"
)

// Store implements storage.Store using in-memory maps.
type Store struct {
	// mu guards both maps below
	mu sync.RWMutex

	// messages maps message ID to the stored message
	messages map[string]*chat.Message

	// sessions maps session ID to message IDs in arrival order
	sessions map[string][]string

	// sessionOrder preserves first-seen order of session IDs
	sessionOrder []string
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string]*chat.Message),
		sessions: make(map[string][]string),
	}
}

// Put stores a message under a session. Returns true if the message was
// newly inserted, false if it already existed (no-op keyed on message ID).
func (s *Store) Put(_ context.Context, sessionID string, msg *chat.Message) (bool, error) {
	if msg == nil {
		return false, errors.New("cannot store nil message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent insert keyed on message ID
	if _, ok := s.messages[msg.ID]; ok {
		return false, nil
	}

	stored := *msg
	s.messages[msg.ID] = &stored

	if _, ok := s.sessions[sessionID]; !ok {
		s.sessionOrder = append(s.sessionOrder, sessionID)
	}
	s.sessions[sessionID] = append(s.sessions[sessionID], msg.ID)

	return true, nil
}

// Get retrieves a message by its ID.
func (s *Store) Get(_ context.Context, id string) (*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return msg, nil
}

// Has checks if a message exists by its ID.
func (s *Store) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.messages[id]
	return ok, nil
}

// List returns all messages for a session in arrival order.
func (s *Store) List(_ context.Context, sessionID string) ([]*chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessions[sessionID]
	msgs := make([]*chat.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, s.messages[id])
	}

	return msgs, nil
}

// Sessions returns the distinct session IDs in first-seen order.
func (s *Store) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.sessionOrder))
	copy(out, s.sessionOrder)
	return out, nil
}

// Count returns the number of messages in the in-memory store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
