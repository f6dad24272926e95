package transport

import "context"

// NotificationSink receives live frames during a turn. Delivery is
// fire-and-forget: a send error never aborts the turn, and frames
// already delivered stand even when the turn later fails.
type NotificationSink interface {
	// Send forwards one frame to the consumer. Implementations should
	// return promptly; the engine does not retry.
	Send(ctx context.Context, frame Frame) error
}

// NopSink discards all frames. Useful for turns driven without a live
// consumer and in tests.
type NopSink struct{}

func (NopSink) Send(ctx context.Context, frame Frame) error { return nil }
