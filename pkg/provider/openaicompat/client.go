// Package openaicompat implements provider.Provider against OpenAI-
// compatible Chat Completions backends (Ollama, vLLM, OpenAI). It
// streams SSE chunks and decodes them into the generation event
// alphabet, accumulating tool call argument fragments across chunks.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/debug"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
)

// Client is an OpenAI-compatible Chat Completions provider.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client for the given backend. Returns an error if the
// configuration is invalid.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Tag == "" {
		cfg.Tag = "openaicompat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider tag.
func (c *Client) Name() string {
	return c.cfg.Tag
}

// Generate starts a streaming Chat Completions request and returns the
// decoded event stream. The channel is closed when the stream
// completes, errors, or the context is cancelled.
//
// The HTTP client timeout is not applied for streaming requests
// because a stream can legitimately last longer than any fixed
// timeout. Lifecycle control relies on context cancellation instead.
func (c *Client) Generate(ctx context.Context, model string, history []conversation.Message, tools []provider.ToolSpec) (<-chan provider.Event, error) {
	messages, err := translateHistory(history)
	if err != nil {
		return nil, fmt.Errorf("translating history: %w", err)
	}

	chatReq := chatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    translateTools(tools),
		Stream:   true,
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/chat/completions"
	debug.Log("providers", "chat completions request",
		"provider", c.cfg.Tag,
		"model", model,
		"messages", len(messages),
		"tools", len(tools),
	)
	if debug.TraceIsEnabled("providers") {
		debug.Raw("providers", debug.Truncate(string(body), 2000))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	// A client without timeout; the context controls the request
	// lifetime for streams.
	streamClient := &http.Client{Transport: c.client.Transport}

	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	ch := make(chan provider.Event, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		if !send(ctx, ch, provider.Event{Type: provider.EventStart}) {
			return
		}
		parseSSEStream(ctx, httpResp.Body, ch)
	}()

	return ch, nil
}

// ListModels queries the backend's /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.cfg.BaseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var modelsResp chatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("parsing models response: %w", err)
	}

	out := make([]provider.ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		out = append(out, provider.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return out, nil
}

// Close releases HTTP client resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
