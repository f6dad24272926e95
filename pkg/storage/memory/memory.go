// Package memory provides an in-memory storage.Store for testing and
// lightweight deployments. Conversations are lost when the process
// restarts. History is held in its serialized at-rest form so the
// memory store round-trips the same codec as the persistent one.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
)

// entry is the at-rest form of one conversation.
type entry struct {
	id              string
	model           string
	systemPromptRef string
	history         []byte
	version         int64
	createdAt       time.Time
	updatedAt       time.Time
}

// Store is an in-memory conversation store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Load returns the conversation with the given ID.
func (s *Store) Load(ctx context.Context, id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return decode(e)
}

// LoadMostRecent returns the most recently updated conversation.
func (s *Store) LoadMostRecent(ctx context.Context) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entry
	for _, e := range s.entries {
		if latest == nil || e.updatedAt.After(latest.updatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return decode(latest)
}

// Save persists the conversation under the optimistic version check.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) (int64, error) {
	history, err := conversation.MarshalHistory(conv.History)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if conv.ID == "" {
		conv.ID = storage.NewConversationID()
		conv.Version = 1
		conv.CreatedAt = now
		conv.UpdatedAt = now
		s.entries[conv.ID] = &entry{
			id:              conv.ID,
			model:           conv.Model,
			systemPromptRef: conv.SystemPromptRef,
			history:         history,
			version:         1,
			createdAt:       now,
			updatedAt:       now,
		}
		return 1, nil
	}

	e, ok := s.entries[conv.ID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	if e.version > conv.Version {
		return 0, storage.ErrConflict
	}

	e.model = conv.Model
	e.systemPromptRef = conv.SystemPromptRef
	e.history = history
	e.version++
	e.updatedAt = now

	conv.Version = e.version
	conv.UpdatedAt = now
	return e.version, nil
}

// Delete removes the conversation.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// decode materializes a conversation from its at-rest entry.
func decode(e *entry) (*conversation.Conversation, error) {
	history, err := conversation.UnmarshalHistory(e.history)
	if err != nil {
		return nil, err
	}
	return &conversation.Conversation{
		ID:              e.id,
		Model:           e.model,
		SystemPromptRef: e.systemPromptRef,
		History:         history,
		Version:         e.version,
		CreatedAt:       e.createdAt,
		UpdatedAt:       e.updatedAt,
	}, nil
}
