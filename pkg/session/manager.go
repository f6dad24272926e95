// Package session manages the single active conversation: creating,
// switching, clearing, and committing turns against it. One mutex
// guards every mutating operation, so two concurrent turns can never
// interleave their appends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Embedding-Space/Alpha-AI/pkg/bus"
	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/observability"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
)

// ErrNoActiveConversation is returned by operations that need an
// active conversation when none is loaded.
var ErrNoActiveConversation = errors.New("no active conversation")

// TurnFunc produces the assistant message for one turn. It receives
// the model reference and a staged history that already ends with the
// user's message; the history is a private copy the function may read
// freely but must not retain.
type TurnFunc func(ctx context.Context, modelRef string, history []conversation.Message) (conversation.Message, error)

// Manager holds the process's single active conversation.
type Manager struct {
	store   storage.Store
	events  *bus.Bus
	prompts PromptLoader

	defaultModel string

	mu     sync.Mutex
	active *conversation.Conversation
}

// NewManager creates a Manager. The bus may be nil in tests; events
// are then skipped.
func NewManager(store storage.Store, events *bus.Bus, prompts PromptLoader, defaultModel string) *Manager {
	return &Manager{
		store:        store,
		events:       events,
		prompts:      prompts,
		defaultModel: defaultModel,
	}
}

// Create saves and releases any active conversation, then starts a
// fresh one seeded with the resolved system prompt and persists it to
// obtain identity. An empty model selects the configured default.
func (m *Manager) Create(ctx context.Context, model, systemPromptRef string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.saveAndRelease(ctx); err != nil {
		return nil, err
	}

	if model == "" {
		model = m.defaultModel
	}

	seed, err := m.loadSeed(systemPromptRef)
	if err != nil {
		return nil, err
	}

	conv := conversation.New(model, systemPromptRef, seed)
	if _, err := m.save(ctx, conv); err != nil {
		return nil, fmt.Errorf("persisting new conversation: %w", err)
	}
	m.active = conv

	m.publish(ctx, bus.EventConversationCreated, map[string]any{
		"conversation_id": conv.ID,
		"model":           conv.Model,
	})
	slog.Info("created conversation", "conversation_id", conv.ID, "model", conv.Model)
	return conv.Clone(), nil
}

// Switch saves and releases the active conversation, then loads the
// requested one. Switching to the already-active conversation is a
// no-op.
func (m *Manager) Switch(ctx context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.ID == id {
		return m.active.Clone(), nil
	}

	if err := m.saveAndRelease(ctx); err != nil {
		return nil, err
	}

	conv, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.active = conv

	m.publish(ctx, bus.EventConversationSwitched, map[string]any{
		"conversation_id": conv.ID,
	})
	slog.Info("switched conversation", "conversation_id", conv.ID)
	return conv.Clone(), nil
}

// Clear truncates the active conversation's history back to its
// seeded system prompt, keeping identity and model, and persists the
// cleared state.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveConversation
	}

	seed, err := m.loadSeed(m.active.SystemPromptRef)
	if err != nil {
		return err
	}

	work := m.active.Clone()
	work.Clear(seed)
	if _, err := m.save(ctx, work); err != nil {
		return fmt.Errorf("persisting cleared conversation: %w", err)
	}
	m.active = work

	m.publish(ctx, bus.EventConversationCleared, map[string]any{
		"conversation_id": work.ID,
	})
	slog.Info("cleared conversation", "conversation_id", work.ID)
	return nil
}

// Active returns a copy of the active conversation, or nil.
func (m *Manager) Active() *conversation.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	return m.active.Clone()
}

// LoadMostRecent makes the most recently updated stored conversation
// active. Returns storage.ErrNotFound when the store is empty; the
// caller then starts fresh with Create.
func (m *Manager) LoadMostRecent(ctx context.Context) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, err := m.store.LoadMostRecent(ctx)
	if err != nil {
		return nil, err
	}
	m.active = conv
	slog.Info("resumed conversation", "conversation_id", conv.ID, "version", conv.Version)
	return conv.Clone(), nil
}

// RunTurn commits one turn atomically: the user message is staged, fn
// produces the assistant message from a private history copy, and on
// success both messages are appended, saved under the version check,
// and announced on the bus. On any error nothing is appended and the
// active conversation is untouched.
func (m *Manager) RunTurn(ctx context.Context, userText string, fn TurnFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return ErrNoActiveConversation
	}

	work := m.active.Clone()
	userMsg := conversation.Message{
		Role:  conversation.RoleUser,
		Parts: []conversation.Part{conversation.UserPromptPart{Content: userText}},
	}

	staged := conversation.CloneHistory(work.History)
	staged = append(staged, userMsg)

	assistantMsg, err := fn(ctx, work.Model, staged)
	if err != nil {
		return err
	}

	if err := work.Append(userMsg); err != nil {
		return err
	}
	if err := work.Append(assistantMsg); err != nil {
		return err
	}
	if _, err := m.save(ctx, work); err != nil {
		return err
	}
	m.active = work

	m.publish(ctx, bus.EventTurnCommitted, map[string]any{
		"conversation_id": work.ID,
		"version":         work.Version,
	})
	return nil
}

// saveAndRelease persists the active conversation before it is
// replaced. Callers hold the mutex.
func (m *Manager) saveAndRelease(ctx context.Context) error {
	if m.active == nil {
		return nil
	}
	if _, err := m.save(ctx, m.active); err != nil {
		return fmt.Errorf("releasing conversation %s: %w", m.active.ID, err)
	}
	m.active = nil
	return nil
}

// save persists through the store, recording the outcome.
func (m *Manager) save(ctx context.Context, conv *conversation.Conversation) (int64, error) {
	version, err := m.store.Save(ctx, conv)
	switch {
	case err == nil:
		observability.StoreSavesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, storage.ErrConflict):
		observability.StoreSavesTotal.WithLabelValues("conflict").Inc()
	default:
		observability.StoreSavesTotal.WithLabelValues("error").Inc()
	}
	return version, err
}

// loadSeed resolves a system prompt reference into a seed part, or
// nil when the reference is empty.
func (m *Manager) loadSeed(ref string) (*conversation.SystemPromptPart, error) {
	if ref == "" {
		return nil, nil
	}
	content, err := m.prompts.Load(ref)
	if err != nil {
		return nil, err
	}
	return &conversation.SystemPromptPart{Content: content}, nil
}

// publish sends a bus event, tolerating a nil bus.
func (m *Manager) publish(ctx context.Context, eventType string, payload any) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, eventType, payload); err != nil {
		slog.Warn("failed to publish event", "event_type", eventType, "error", err)
	}
}
