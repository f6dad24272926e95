// Package http serves the chat API over HTTP. Chat turns stream their
// frames as server-sent events; the remaining endpoints are plain JSON.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/engine"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
	"github.com/Embedding-Space/Alpha-AI/pkg/session"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
	"github.com/Embedding-Space/Alpha-AI/pkg/transport"
)

// Adapter routes the HTTP API to the engine and session manager.
type Adapter struct {
	engine   *engine.Engine
	sessions *session.Manager
	registry *provider.Registry
	store    storage.Store
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter over the given collaborators.
func NewAdapter(eng *engine.Engine, sessions *session.Manager, registry *provider.Registry, store storage.Store, cfg Config) *Adapter {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		engine:   eng,
		sessions: sessions,
		registry: registry,
		store:    store,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /api/v1/chat", a.handleChat)
	a.mux.HandleFunc("GET /api/v1/conversation", a.handleGetConversation)
	a.mux.HandleFunc("DELETE /api/v1/conversation", a.handleClearConversation)
	a.mux.HandleFunc("POST /api/v1/conversations", a.handleCreateConversation)
	a.mux.HandleFunc("POST /api/v1/conversations/{id}/activate", a.handleActivateConversation)
	a.mux.HandleFunc("GET /api/v1/models", a.handleListModels)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Mount registers an extra handler on the adapter's mux, used for the
// metrics endpoint.
func (a *Adapter) Mount(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// chatRequest is the body of POST /api/v1/chat.
type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs one chat turn, streaming frames as SSE.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		transport.WriteError(w, http.StatusBadRequest, "invalid_request", "message must not be empty")
		return
	}

	sink := newSSESink(w)
	if err := a.engine.Chat(r.Context(), req.Message, sink); err != nil {
		// The engine already emitted an error frame on a started
		// stream; only pre-stream failures still own the status line.
		if !sink.hasStartedStreaming() {
			a.writeEngineError(w, err)
		}
	}
}

// conversationSummary is the JSON shape shared by the conversation
// endpoints.
type conversationSummary struct {
	ID              string `json:"id"`
	Model           string `json:"model"`
	SystemPromptRef string `json:"system_prompt_ref,omitempty"`
	Version         int64  `json:"version"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	TotalMessages   int    `json:"total_messages"`
}

// conversationResponse adds the serialized history.
type conversationResponse struct {
	conversationSummary
	Messages json.RawMessage `json:"messages"`
}

func summarize(conv *conversation.Conversation) conversationSummary {
	return conversationSummary{
		ID:              conv.ID,
		Model:           conv.Model,
		SystemPromptRef: conv.SystemPromptRef,
		Version:         conv.Version,
		CreatedAt:       conv.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       conv.UpdatedAt.Format(time.RFC3339Nano),
		TotalMessages:   len(conv.History),
	}
}

// handleGetConversation returns the active conversation with its
// history. An optional ?limit=N returns only the last N messages.
func (a *Adapter) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv := a.sessions.Active()
	if conv == nil {
		transport.WriteError(w, http.StatusNotFound, "not_found", "no active conversation")
		return
	}

	history := conv.History
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			transport.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
	}

	messages, err := conversation.MarshalHistory(history)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		conversationSummary: summarize(conv),
		Messages:            messages,
	})
}

// handleClearConversation resets the active conversation's history to
// its seeded system prompt.
func (a *Adapter) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Clear(r.Context()); err != nil {
		a.writeEngineError(w, err)
		return
	}
	conv := a.sessions.Active()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "conversation cleared",
		"conversation_id": conv.ID,
		"model":           conv.Model,
	})
}

// createConversationRequest is the body of POST /api/v1/conversations.
type createConversationRequest struct {
	Model           string `json:"model"`
	SystemPromptRef string `json:"system_prompt_ref"`
}

// handleCreateConversation starts a fresh conversation and makes it
// active. The previous active conversation is saved and released.
func (a *Adapter) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.ContentLength != 0 && !a.decodeBody(w, r, &req) {
		return
	}

	conv, err := a.sessions.Create(r.Context(), req.Model, req.SystemPromptRef)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summarize(conv))
}

// handleActivateConversation switches to a stored conversation.
func (a *Adapter) handleActivateConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !storage.ValidateConversationID(id) {
		transport.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed conversation ID")
		return
	}

	conv, err := a.sessions.Switch(r.Context(), id)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(conv))
}

// handleListModels aggregates the models of every configured provider.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.registry.ListModels(r.Context())
	if err != nil {
		transport.WriteError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	type modelEntry struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by,omitempty"`
	}
	data := make([]modelEntry, 0, len(models))
	for _, m := range models {
		data = append(data, modelEntry{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

// handleHealth reports readiness, including store connectivity.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// decodeBody decodes a JSON request body, writing the error response
// itself on failure.
func (a *Adapter) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteError(w, http.StatusUnsupportedMediaType, "invalid_request", "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteError(w, http.StatusRequestEntityTooLarge, "invalid_request",
				fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
			return false
		}
		transport.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeEngineError maps engine and storage errors to HTTP responses.
func (a *Adapter) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		transport.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrNoActiveConversation):
		transport.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, storage.ErrConflict):
		transport.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, provider.ErrUnknownProvider):
		transport.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		transport.WriteError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
