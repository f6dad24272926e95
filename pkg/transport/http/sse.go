package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Embedding-Space/Alpha-AI/pkg/transport"
)

// sinkState tracks the state of an SSE sink.
type sinkState int

const (
	sinkIdle      sinkState = iota // Initial state, no frames written yet
	sinkStreaming                  // Send has been called at least once
	sinkCompleted                  // Terminal frame sent
)

// terminalFrames are the frame types that end a chat stream.
var terminalFrames = map[transport.FrameType]bool{
	transport.FrameDone:  true,
	transport.FrameError: true,
}

// sseSink implements transport.NotificationSink over an HTTP/SSE
// response. Each frame is written as one SSE message:
//
//	data: {json}\n
//	\n
//
// After a terminal frame (done or error) it also sends:
//
//	data: [DONE]\n
//	\n
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state sinkState
}

var _ transport.NotificationSink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Send writes a single frame and flushes it to the client.
func (s *sseSink) Send(ctx context.Context, frame transport.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == sinkCompleted {
		return errors.New("cannot send frame: stream is completed")
	}

	// First frame: set SSE headers.
	if s.state == sinkIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = sinkStreaming
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	// Flush immediately so deltas arrive as they are produced.
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if terminalFrames[frame.Type] {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("failed to write [DONE]: %w", err)
		}
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("failed to flush [DONE]: %w", err)
		}
		s.state = sinkCompleted
	}

	return nil
}

// hasStartedStreaming returns true if at least one frame has been written.
func (s *sseSink) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != sinkIdle
}
