package engine

import (
	"errors"
	"fmt"
)

// ErrStreamAborted reports that the caller cancelled the turn
// mid-stream. Nothing is committed; frames already delivered stand.
var ErrStreamAborted = errors.New("stream aborted by caller")

// UnmatchedToolReturnError reports a tool result whose call_id has no
// corresponding tool call in the current turn. This is a protocol
// violation from a collaborator; the turn aborts without commit.
type UnmatchedToolReturnError struct {
	CallID string
}

func (e *UnmatchedToolReturnError) Error() string {
	return fmt.Sprintf("tool return references unknown call_id %q", e.CallID)
}

// UpstreamGenerationError reports that the provider backend failed
// during generation. The turn aborts without commit; the conversation
// remains usable and the caller may retry.
type UpstreamGenerationError struct {
	Provider string
	Err      error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("provider %q generation failed: %v", e.Provider, e.Err)
}

func (e *UpstreamGenerationError) Unwrap() error {
	return e.Err
}
