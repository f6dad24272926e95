package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
	"github.com/Embedding-Space/Alpha-AI/pkg/transport"
)

// Builder reconstructs the assistant message of one turn from a
// generation event stream. It is a pure state machine: Feed consumes
// one event at a time in arrival order and returns the live frames to
// forward; Finalize assembles the message once the stream has ended.
//
// Text deltas accrete byte-exactly into a single open text part; a
// tool call boundary closes it and a later delta opens a new one, so
// part order always equals event arrival order.
//
// Builder is not safe for concurrent use; a turn is a single ordered
// consumption.
type Builder struct {
	model string

	parts    []conversation.Part
	text     strings.Builder
	textOpen bool

	// callNames maps announced call ids to tool names.
	// materialized tracks call ids that already have a ToolCallPart.
	callNames    map[string]string
	materialized map[string]bool

	started bool
	ended   bool
}

// NewBuilder creates a Builder for one turn against the given model
// reference.
func NewBuilder(model string) *Builder {
	return &Builder{
		model:        model,
		callNames:    make(map[string]string),
		materialized: make(map[string]bool),
	}
}

// Feed consumes one generation event and returns the frames to
// forward to the live consumer. A returned error aborts the turn; the
// builder must not be used further.
func (b *Builder) Feed(ev provider.Event) ([]transport.Frame, error) {
	switch ev.Type {
	case provider.EventStart:
		// A turn spanning multiple generation passes (tool rounds)
		// sees several Start events; only the first one is announced.
		if b.started {
			return nil, nil
		}
		b.started = true
		return []transport.Frame{transport.StartFrame(b.model)}, nil

	case provider.EventTextDelta:
		// Empty deltas are protocol no-ops.
		if ev.Content == "" {
			return nil, nil
		}
		b.text.WriteString(ev.Content)
		b.textOpen = true
		return []transport.Frame{transport.TextDeltaFrame(ev.Content)}, nil

	case provider.EventToolCallStart:
		b.closeText()
		b.callNames[ev.CallID] = ev.ToolName
		return nil, nil

	case provider.EventToolCallArgsDelta:
		// Forwarded for progressive display; no part materializes
		// until the call is ready.
		return []transport.Frame{transport.ToolCallArgsDeltaFrame(ev.CallID, ev.Args)}, nil

	case provider.EventToolCallReady:
		if b.materialized[ev.CallID] {
			return nil, &conversation.InvariantViolationError{
				Reason: "duplicate tool call id in turn",
				CallID: ev.CallID,
			}
		}
		b.closeText()
		b.callNames[ev.CallID] = ev.ToolName
		b.materialized[ev.CallID] = true

		args := normalizeArgs(ev.Args)
		b.parts = append(b.parts, conversation.ToolCallPart{
			ToolName: ev.ToolName,
			Args:     args,
			CallID:   ev.CallID,
		})
		return []transport.Frame{transport.ToolCallFrame(ev.ToolName, args, ev.CallID)}, nil

	case provider.EventToolResult:
		if !b.materialized[ev.CallID] {
			return nil, &UnmatchedToolReturnError{CallID: ev.CallID}
		}
		b.closeText()
		b.parts = append(b.parts, conversation.ToolReturnPart{
			ToolName: b.callNames[ev.CallID],
			Content:  ev.Content,
			CallID:   ev.CallID,
		})
		// A result means the turn continues with another generation
		// pass; any End seen so far no longer terminates the turn.
		b.ended = false
		return []transport.Frame{transport.ToolReturnFrame(ev.CallID, ev.Content)}, nil

	case provider.EventEnd:
		b.closeText()
		b.ended = true
		return nil, nil

	case provider.EventError:
		err := ev.Err
		if err == nil {
			err = fmt.Errorf("unspecified stream error")
		}
		return nil, err

	default:
		return nil, fmt.Errorf("unknown event type %v", ev.Type)
	}
}

// closeText seals the open text part, if any.
func (b *Builder) closeText() {
	if !b.textOpen {
		return
	}
	b.parts = append(b.parts, conversation.TextPart{Content: b.text.String()})
	b.text.Reset()
	b.textOpen = false
}

// Ended reports whether the stream has terminated normally and no
// tool result has reopened the turn since.
func (b *Builder) Ended() bool {
	return b.ended
}

// UnansweredCalls returns the tool calls that have no matching return
// yet, in materialization order.
func (b *Builder) UnansweredCalls() []conversation.ToolCallPart {
	answered := make(map[string]bool)
	for _, part := range b.parts {
		if ret, ok := part.(conversation.ToolReturnPart); ok {
			answered[ret.CallID] = true
		}
	}
	var calls []conversation.ToolCallPart
	for _, part := range b.parts {
		if call, ok := part.(conversation.ToolCallPart); ok && !answered[call.CallID] {
			calls = append(calls, call)
		}
	}
	return calls
}

// Snapshot returns the in-progress assistant message, including the
// open text part, without disturbing builder state. Used to extend
// the provider history for the next tool round.
func (b *Builder) Snapshot() conversation.Message {
	msg := conversation.Message{Role: conversation.RoleAssistant}
	msg.Parts = append(msg.Parts, b.parts...)
	if b.textOpen {
		msg.Parts = append(msg.Parts, conversation.TextPart{Content: b.text.String()})
	}
	return msg
}

// Finalize assembles the turn's assistant message. Valid only after
// the stream has ended.
func (b *Builder) Finalize() (conversation.Message, error) {
	if !b.ended {
		return conversation.Message{}, fmt.Errorf("finalize before stream end")
	}
	b.closeText()
	return conversation.Message{
		Role:  conversation.RoleAssistant,
		Parts: b.parts,
	}, nil
}

// normalizeArgs decodes a tool call's argument JSON. Objects pass
// through; any other well-formed value is wrapped under a synthetic
// "value" key, and malformed JSON is preserved verbatim under the
// same key so nothing is silently lost.
func normalizeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return map[string]any{"value": raw}
	}
	if m, ok := v.(map[string]any); ok {
		if m == nil {
			return map[string]any{}
		}
		return m
	}
	return map[string]any{"value": v}
}
