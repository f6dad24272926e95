package tools

import "fmt"

// TransportKind classifies when a transport failure happened.
type TransportKind int

const (
	// KindConnect is a startup-time connection failure. These are
	// fatal: the process halts with an actionable message rather than
	// running with a silently missing tool server.
	KindConnect TransportKind = iota

	// KindCall is a per-turn invocation failure. These are transient:
	// the turn errors but the conversation remains usable.
	KindCall
)

func (k TransportKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindCall:
		return "call"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TransportError reports a tool server transport failure. Callers
// classify it with errors.As and the Kind field, never by message.
type TransportError struct {
	Kind   TransportKind
	Server string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tool transport %s failure on server %q: %v", e.Kind, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
