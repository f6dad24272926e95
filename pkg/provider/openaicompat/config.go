package openaicompat

import "time"

// Config holds connection settings for an OpenAI-compatible Chat
// Completions backend (Ollama, vLLM, OpenAI itself).
type Config struct {
	// Tag is the provider tag this instance is registered under
	// (e.g., "ollama"). Used in logs and error messages.
	Tag string

	// BaseURL is the backend base URL without the /v1 suffix
	// (e.g., "http://localhost:11434").
	BaseURL string

	// APIKey, when set, is sent as a Bearer token.
	APIKey string

	// Timeout applies to non-streaming requests (model listing).
	// Streaming requests rely on context cancellation instead.
	Timeout time.Duration
}
