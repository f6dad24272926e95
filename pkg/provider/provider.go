// Package provider abstracts the model backends that generate
// assistant responses. The engine only depends on the Event alphabet
// and the Provider interface; each adapter handles its own wire
// protocol internally.
package provider

import (
	"context"
	"encoding/json"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
)

// Provider produces a stream of generation events for a conversation
// history. Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider tag (e.g., "ollama", "openai").
	Name() string

	// Generate starts one generation pass over the given history and
	// returns a channel of events. The channel is closed by the
	// provider when the stream ends or errors. The history and tool
	// specs are read-only; providers must not retain or mutate them.
	Generate(ctx context.Context, model string, history []conversation.Message, tools []ToolSpec) (<-chan Event, error)

	// ListModels returns the models this backend can serve.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// ModelInfo describes one model served by a provider.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ToolSpec describes a tool the model may call during generation.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}
