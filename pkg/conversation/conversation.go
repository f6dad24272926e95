// Package conversation defines the message history model for Alpha AI:
// a conversation is an ordered, append-only sequence of messages, each
// composed of ordered typed parts (prompts, text, tool calls and tool
// returns). The package is pure data plus its JSON codec; persistence
// and streaming live elsewhere.
package conversation

import (
	"fmt"
	"time"
)

// Role tags the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a finalized message in a conversation. Messages are
// immutable once appended; history is append-only except for Clear.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Conversation holds the full state of one conversation. The ID is
// empty until the store persists it for the first time. Version starts
// at 1 and increases by exactly 1 on every successful save.
type Conversation struct {
	ID              string
	Model           string
	SystemPromptRef string
	History         []Message
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New creates an empty conversation for the given model. If seed is
// non-nil, the history starts with a single system message carrying it.
func New(model, systemPromptRef string, seed *SystemPromptPart) *Conversation {
	c := &Conversation{
		Model:           model,
		SystemPromptRef: systemPromptRef,
		Version:         1,
	}
	if seed != nil {
		c.History = []Message{{Role: RoleSystem, Parts: []Part{*seed}}}
	}
	return c
}

// Append adds a finalized message to the end of history. It fails with
// *InvariantViolationError if a ToolReturnPart references a call_id
// with no preceding ToolCallPart in the conversation, or if a
// ToolCallPart reuses a call_id already seen in this history.
func (c *Conversation) Append(msg Message) error {
	switch msg.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return &InvariantViolationError{Reason: fmt.Sprintf("unknown role %q", msg.Role)}
	}

	known := c.knownCallIDs()
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case ToolCallPart:
			if known[part.CallID] {
				return &InvariantViolationError{
					Reason: "duplicate tool call id",
					CallID: part.CallID,
				}
			}
			known[part.CallID] = true
		case ToolReturnPart:
			if !known[part.CallID] {
				return &InvariantViolationError{
					Reason: "tool return references unknown call id",
					CallID: part.CallID,
				}
			}
		}
	}

	c.History = append(c.History, msg)
	return nil
}

// Clear truncates history to empty, or to a single system message when
// seed is non-nil. The model and identity are kept; a cleared
// conversation starts a fresh call-id space.
func (c *Conversation) Clear(seed *SystemPromptPart) {
	c.History = nil
	if seed != nil {
		c.History = []Message{{Role: RoleSystem, Parts: []Part{*seed}}}
	}
}

// Clone returns a deep copy. The copy shares nothing with the original,
// so callers can hand it out read-only or mutate it independently.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.History = CloneHistory(c.History)
	return &cp
}

// CloneHistory deep-copies a message slice, including tool call
// argument maps.
func CloneHistory(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = m.Clone()
	}
	return out
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	cp := m
	if m.Parts != nil {
		cp.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			cp.Parts[i] = clonePart(p)
		}
	}
	return cp
}

func clonePart(p Part) Part {
	tc, ok := p.(ToolCallPart)
	if !ok || tc.Args == nil {
		return p
	}
	args := make(map[string]any, len(tc.Args))
	for k, v := range tc.Args {
		args[k] = v
	}
	tc.Args = args
	return tc
}

// knownCallIDs collects every tool call id in the current history.
// A Clear resets this set along with the history itself.
func (c *Conversation) knownCallIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, msg := range c.History {
		for _, p := range msg.Parts {
			if tc, ok := p.(ToolCallPart); ok {
				ids[tc.CallID] = true
			}
		}
	}
	return ids
}
