package provider

import "fmt"

// EventType identifies a generation stream event.
type EventType int

const (
	// EventStart marks the beginning of a generation stream.
	EventStart EventType = iota

	// EventTextDelta carries an incremental fragment of assistant text.
	EventTextDelta

	// EventToolCallStart announces a tool invocation before its
	// arguments are complete. ToolName and CallID are set.
	EventToolCallStart

	// EventToolCallArgsDelta carries an incremental fragment of a tool
	// call's argument JSON.
	EventToolCallArgsDelta

	// EventToolCallReady marks a tool call whose arguments are fully
	// accumulated. Args holds the complete argument JSON.
	EventToolCallReady

	// EventToolResult carries the outcome of a tool execution. It is
	// synthesized by the engine, never emitted by a backend.
	EventToolResult

	// EventEnd marks successful completion of the stream.
	EventEnd

	// EventError marks abnormal termination. Err is set and no further
	// events follow.
	EventError
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventTextDelta:
		return "text_delta"
	case EventToolCallStart:
		return "tool_call_start"
	case EventToolCallArgsDelta:
		return "tool_call_args_delta"
	case EventToolCallReady:
		return "tool_call_ready"
	case EventToolResult:
		return "tool_result"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one element of a generation stream. Which fields are set
// depends on Type; unused fields are zero.
type Event struct {
	Type EventType

	// Content holds text for EventTextDelta and the serialized tool
	// output for EventToolResult.
	Content string

	// ToolName and CallID identify a tool invocation for the tool call
	// and tool result events.
	ToolName string
	CallID   string

	// Args holds an argument JSON fragment for EventToolCallArgsDelta
	// and the complete argument JSON for EventToolCallReady.
	Args string

	// Err is set for EventError.
	Err error
}
