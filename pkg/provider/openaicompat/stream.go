package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Embedding-Space/Alpha-AI/pkg/debug"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
)

// toolCallBuffer tracks incremental tool call argument assembly across
// multiple SSE chunks for a single tool call index.
type toolCallBuffer struct {
	ID   string
	Name string
	Args strings.Builder
}

// streamState carries per-stream parsing state.
type streamState struct {
	toolCalls map[int]*toolCallBuffer
	ended     bool
}

// send delivers one event unless the context is cancelled. A false
// return means the consumer is gone; the producer must stop. A plain
// channel send here would block forever once the consumer abandons
// the stream and the buffer fills, leaking this goroutine and the
// response body it holds open.
func send(ctx context.Context, ch chan<- provider.Event, ev provider.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// parseSSEStream reads Chat Completions SSE chunks from the given
// reader, translates each chunk to Event values, and sends them on ch.
// The channel is NOT closed by this function; the caller is
// responsible for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func parseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Event) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	st := &streamState{toolCalls: make(map[int]*toolCallBuffer)}

	for scanner.Scan() {
		// Check for context cancellation between lines.
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (e.g., empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		if debug.TraceIsEnabled("providers") {
			debug.Raw("providers", debug.Truncate(payload, 500))
		}

		// Handle the [DONE] sentinel.
		if payload == "[DONE]" {
			if !st.ended {
				send(ctx, ch, provider.Event{
					Type: provider.EventError,
					Err:  fmt.Errorf("stream terminated without finish_reason"),
				})
			}
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		if !translateChunk(ctx, &chunk, st, ch) {
			return
		}
	}

	// Scanner error (e.g., connection dropped).
	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		send(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  fmt.Errorf("SSE stream read error: %w", err),
		})
		return
	}

	// EOF without [DONE]. Some backends close the connection after the
	// final chunk; if we saw finish_reason the stream is complete.
	if !st.ended {
		send(ctx, ch, provider.Event{
			Type: provider.EventError,
			Err:  fmt.Errorf("stream closed before completion"),
		})
	}
}

// translateChunk converts a single chatCompletionChunk into zero or
// more Event values sent on the channel. A false return means the
// consumer is gone and the stream must stop.
func translateChunk(ctx context.Context, chunk *chatCompletionChunk, st *streamState, ch chan<- provider.Event) bool {
	// No choices means nothing to translate (e.g., a usage-only final
	// chunk sent with stream_options.include_usage).
	if len(chunk.Choices) == 0 {
		return true
	}

	choice := chunk.Choices[0]
	delta := choice.Delta

	// finish_reason signals completion for this choice: flush any
	// buffered tool calls, then end the stream.
	if choice.FinishReason != nil {
		if !flushToolCalls(ctx, st, ch) {
			return false
		}
		st.ended = true
		return send(ctx, ch, provider.Event{Type: provider.EventEnd})
	}

	// Tool call deltas.
	if len(delta.ToolCalls) > 0 {
		for _, tc := range delta.ToolCalls {
			buf, exists := st.toolCalls[tc.Index]
			if !exists {
				// First chunk for this index carries the id and
				// function name. Some backends omit the id; mint one
				// so pairing still works downstream.
				id := tc.ID
				if id == "" {
					id = "call_" + uuid.NewString()
				}
				buf = &toolCallBuffer{ID: id, Name: tc.Function.Name}
				st.toolCalls[tc.Index] = buf

				if !send(ctx, ch, provider.Event{
					Type:     provider.EventToolCallStart,
					ToolName: buf.Name,
					CallID:   buf.ID,
				}) {
					return false
				}
			}

			if tc.Function.Arguments != "" {
				buf.Args.WriteString(tc.Function.Arguments)
				if !send(ctx, ch, provider.Event{
					Type:     provider.EventToolCallArgsDelta,
					ToolName: buf.Name,
					CallID:   buf.ID,
					Args:     tc.Function.Arguments,
				}) {
					return false
				}
			}
		}
		return true
	}

	// Text content delta.
	if delta.Content != nil && *delta.Content != "" {
		return send(ctx, ch, provider.Event{
			Type:    provider.EventTextDelta,
			Content: *delta.Content,
		})
	}

	// Role-only chunks (first chunk of a message) and empty deltas
	// carry no information for us. Silently skip.
	return true
}

// flushToolCalls emits a ToolCallReady for each buffered tool call in
// index order and clears the buffers.
func flushToolCalls(ctx context.Context, st *streamState, ch chan<- provider.Event) bool {
	if len(st.toolCalls) == 0 {
		return true
	}
	indexes := make([]int, 0, len(st.toolCalls))
	for idx := range st.toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		buf := st.toolCalls[idx]
		args := buf.Args.String()
		if args == "" {
			args = "{}"
		}
		if !send(ctx, ch, provider.Event{
			Type:     provider.EventToolCallReady,
			ToolName: buf.Name,
			CallID:   buf.ID,
			Args:     args,
		}) {
			return false
		}
		delete(st.toolCalls, idx)
	}
	return true
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
