package conversation

import (
	"encoding/json"
	"fmt"
)

// The at-rest codec. A history serializes to a JSON array of messages,
// each part carrying a "type" discriminator so deserialization restores
// the exact variant. MarshalHistory and UnmarshalHistory form an exact
// round trip: UnmarshalHistory(MarshalHistory(h)) == h for every valid
// history h, preserving part ordering and variant identity.

// partEnvelope is the serialized form of a Part.
type partEnvelope struct {
	Type     PartKind       `json:"type"`
	Content  string         `json:"content,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	CallID   string         `json:"call_id,omitempty"`
}

// MarshalHistory encodes a message history as a JSON array.
func MarshalHistory(history []Message) ([]byte, error) {
	if history == nil {
		history = []Message{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return data, nil
}

// UnmarshalHistory decodes a JSON array produced by MarshalHistory.
// Malformed input, including unknown part discriminators, yields a
// *SerializationError.
func UnmarshalHistory(data []byte) ([]Message, error) {
	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return history, nil
}

// MarshalJSON encodes the message with tagged part envelopes.
func (m Message) MarshalJSON() ([]byte, error) {
	envelopes := make([]partEnvelope, len(m.Parts))
	for i, p := range m.Parts {
		switch part := p.(type) {
		case SystemPromptPart:
			envelopes[i] = partEnvelope{Type: KindSystemPrompt, Content: part.Content}
		case UserPromptPart:
			envelopes[i] = partEnvelope{Type: KindUserPrompt, Content: part.Content}
		case TextPart:
			envelopes[i] = partEnvelope{Type: KindText, Content: part.Content}
		case ToolCallPart:
			envelopes[i] = partEnvelope{Type: KindToolCall, ToolName: part.ToolName, Args: part.Args, CallID: part.CallID}
		case ToolReturnPart:
			envelopes[i] = partEnvelope{Type: KindToolReturn, ToolName: part.ToolName, Content: part.Content, CallID: part.CallID}
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}

	return json.Marshal(struct {
		Role  Role           `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}{Role: m.Role, Parts: envelopes})
}

// UnmarshalJSON decodes a message, restoring the concrete part variant
// for each envelope.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  Role           `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Parts = make([]Part, len(raw.Parts))
	for i, env := range raw.Parts {
		switch env.Type {
		case KindSystemPrompt:
			m.Parts[i] = SystemPromptPart{Content: env.Content}
		case KindUserPrompt:
			m.Parts[i] = UserPromptPart{Content: env.Content}
		case KindText:
			m.Parts[i] = TextPart{Content: env.Content}
		case KindToolCall:
			m.Parts[i] = ToolCallPart{ToolName: env.ToolName, Args: env.Args, CallID: env.CallID}
		case KindToolReturn:
			m.Parts[i] = ToolReturnPart{ToolName: env.ToolName, Content: env.Content, CallID: env.CallID}
		default:
			return fmt.Errorf("unknown part discriminator %q", env.Type)
		}
	}
	return nil
}
