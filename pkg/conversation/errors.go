package conversation

import "fmt"

// InvariantViolationError reports a message that would corrupt the
// history invariants (unmatched tool return, reused call id, unknown
// role). The offending turn must be aborted without partial commit.
type InvariantViolationError struct {
	Reason string
	CallID string
}

func (e *InvariantViolationError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("history invariant violated: %s (call_id: %s)", e.Reason, e.CallID)
	}
	return "history invariant violated: " + e.Reason
}

// SerializationError reports a persisted history blob that cannot be
// decoded. The conversation is unusable until repaired or discarded.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "malformed history blob: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }
