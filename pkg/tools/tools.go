// Package tools defines the tool-transport abstraction the engine
// calls during a turn: tool discovery, invocation, and the transport
// error taxonomy.
package tools

import (
	"context"
	"encoding/json"
)

// Executor executes tool calls on behalf of the engine. Invocations
// are scoped per turn via the passed context; cancelling the turn
// cancels in-flight tool calls.
type Executor interface {
	// CanExecute reports whether this executor handles the named tool.
	CanExecute(toolName string) bool

	// Invoke runs the tool and returns its result. A tool that runs
	// but fails returns a Result with IsError set; a transport-level
	// failure returns a *TransportError.
	Invoke(ctx context.Context, call Call) (*Result, error)

	// Tools returns the definitions of all tools this executor
	// provides, for advertising to the model.
	Tools(ctx context.Context) ([]Definition, error)

	// Close releases transport resources.
	Close() error
}

// Call represents a model's request to invoke a tool.
type Call struct {
	// ID is the unique call identifier (e.g., "call_abc123").
	ID string

	// Name is the tool name.
	Name string

	// Args holds the decoded tool arguments.
	Args map[string]any
}

// Result represents the output of a tool execution.
type Result struct {
	// CallID matches the originating Call.ID.
	CallID string

	// Output is the tool output content (text).
	Output string

	// IsError indicates that the output is an error message the model
	// should see, not a transport failure.
	IsError bool
}

// Definition describes a tool for advertisement to the model.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}
