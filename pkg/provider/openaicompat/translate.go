package openaicompat

import (
	"encoding/json"
	"fmt"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
)

// translateHistory converts a conversation history to Chat Completions
// wire messages. Assistant messages that interleave text, tool calls,
// and tool returns are split into the wire shape the protocol expects:
// an assistant message carrying text and tool_calls, followed by one
// "tool" role message per tool return, followed by another assistant
// message if more text comes after the return.
func translateHistory(history []conversation.Message) ([]chatMessage, error) {
	var out []chatMessage
	for _, msg := range history {
		switch msg.Role {
		case conversation.RoleSystem, conversation.RoleUser:
			content, err := concatTextContent(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, chatMessage{Role: string(msg.Role), Content: content})

		case conversation.RoleAssistant:
			wire, err := translateAssistant(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, wire...)

		default:
			return nil, fmt.Errorf("untranslatable role %q", msg.Role)
		}
	}
	return out, nil
}

// concatTextContent joins the textual parts of a system or user message.
func concatTextContent(msg conversation.Message) (string, error) {
	var content string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case conversation.SystemPromptPart:
			content += p.Content
		case conversation.UserPromptPart:
			content += p.Content
		case conversation.TextPart:
			content += p.Content
		default:
			return "", fmt.Errorf("part %q not allowed in %s message", part.Kind(), msg.Role)
		}
	}
	return content, nil
}

// translateAssistant splits one assistant message into its wire
// messages, preserving part order.
func translateAssistant(msg conversation.Message) ([]chatMessage, error) {
	var out []chatMessage

	// pending accumulates text and tool calls until a tool return
	// forces a flush.
	var pending *chatMessage

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}
	ensure := func() *chatMessage {
		if pending == nil {
			pending = &chatMessage{Role: "assistant"}
		}
		return pending
	}

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case conversation.TextPart:
			ensure().Content += p.Content

		case conversation.ToolCallPart:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return nil, fmt.Errorf("marshaling args for tool call %s: %w", p.CallID, err)
			}
			m := ensure()
			m.ToolCalls = append(m.ToolCalls, chatToolCall{
				ID:   p.CallID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      p.ToolName,
					Arguments: string(args),
				},
			})

		case conversation.ToolReturnPart:
			flush()
			out = append(out, chatMessage{
				Role:       "tool",
				Content:    p.Content,
				ToolCallID: p.CallID,
			})

		default:
			return nil, fmt.Errorf("part %q not allowed in assistant message", part.Kind())
		}
	}
	flush()
	return out, nil
}

// translateTools converts tool specs to Chat Completions definitions.
func translateTools(specs []provider.ToolSpec) []chatTool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return out
}
