package conversation

// PartKind discriminates the Part variants in the serialized form.
type PartKind string

const (
	KindSystemPrompt PartKind = "system_prompt"
	KindUserPrompt   PartKind = "user_prompt"
	KindText         PartKind = "text"
	KindToolCall     PartKind = "tool_call"
	KindToolReturn   PartKind = "tool_return"
)

// Part is a typed fragment of a message. Implementations are value
// types so histories compare with reflect.DeepEqual after a codec
// round trip.
type Part interface {
	Kind() PartKind
}

// SystemPromptPart carries the system prompt content seeded into a
// conversation's first message.
type SystemPromptPart struct {
	Content string `json:"content"`
}

// UserPromptPart carries one user input.
type UserPromptPart struct {
	Content string `json:"content"`
}

// TextPart is assistant text, accreted byte-for-byte from stream
// deltas during reconstruction.
type TextPart struct {
	Content string `json:"content"`
}

// ToolCallPart records a model-initiated tool invocation. Args is
// always a mapping; loosely-typed argument payloads are normalized
// before a ToolCallPart is materialized.
type ToolCallPart struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args,omitempty"`
	CallID   string         `json:"call_id"`
}

// ToolReturnPart records the result paired to a prior ToolCallPart by
// call id.
type ToolReturnPart struct {
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
	CallID   string `json:"call_id"`
}

func (SystemPromptPart) Kind() PartKind { return KindSystemPrompt }
func (UserPromptPart) Kind() PartKind   { return KindUserPrompt }
func (TextPart) Kind() PartKind         { return KindText }
func (ToolCallPart) Kind() PartKind     { return KindToolCall }
func (ToolReturnPart) Kind() PartKind   { return KindToolReturn }
