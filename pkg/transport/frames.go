// Package transport defines the live notification wire: the typed
// frames forwarded to a consumer while a turn streams, and the sink
// interface a transport adapter implements to receive them.
package transport

// FrameType identifies a wire frame.
type FrameType string

const (
	FrameStart             FrameType = "start"
	FrameTextDelta         FrameType = "text_delta"
	FrameToolCall          FrameType = "tool_call"
	FrameToolCallArgsDelta FrameType = "tool_call_args_delta"
	FrameToolReturn        FrameType = "tool_return"
	FrameDone              FrameType = "done"
	FrameError             FrameType = "error"
)

// Frame is one element of the live notification stream. Frames are
// strictly ordered and delivered at-most-once; there is no resumption
// contract for a consumer that reconnects mid-stream.
type Frame struct {
	Type FrameType `json:"type"`

	// Model is set on start frames.
	Model string `json:"model,omitempty"`

	// Content carries text for text_delta frames and tool output for
	// tool_return frames.
	Content string `json:"content,omitempty"`

	// ToolName, Args, and ToolCallID describe a tool invocation on
	// tool_call frames; tool_return frames carry only ToolCallID.
	ToolName   string         `json:"tool_name,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`

	// ArgsDelta carries an argument JSON fragment on
	// tool_call_args_delta frames.
	ArgsDelta string `json:"args_delta,omitempty"`

	// Error carries the failure detail on error frames.
	Error string `json:"error,omitempty"`
}

// StartFrame announces the beginning of a turn's stream.
func StartFrame(model string) Frame {
	return Frame{Type: FrameStart, Model: model}
}

// TextDeltaFrame carries an incremental fragment of assistant text.
func TextDeltaFrame(content string) Frame {
	return Frame{Type: FrameTextDelta, Content: content}
}

// ToolCallFrame announces a fully-assembled tool invocation.
func ToolCallFrame(toolName string, args map[string]any, callID string) Frame {
	return Frame{Type: FrameToolCall, ToolName: toolName, Args: args, ToolCallID: callID}
}

// ToolCallArgsDeltaFrame carries a fragment of a tool call's argument
// JSON while it is still being assembled.
func ToolCallArgsDeltaFrame(callID, delta string) Frame {
	return Frame{Type: FrameToolCallArgsDelta, ToolCallID: callID, ArgsDelta: delta}
}

// ToolReturnFrame carries the outcome of a tool execution.
func ToolReturnFrame(callID, content string) Frame {
	return Frame{Type: FrameToolReturn, ToolCallID: callID, Content: content}
}

// DoneFrame marks successful completion of the turn's stream.
func DoneFrame() Frame {
	return Frame{Type: FrameDone}
}

// ErrorFrame marks abnormal termination of the turn's stream.
func ErrorFrame(detail string) Frame {
	return Frame{Type: FrameError, Error: detail}
}
