// Package bus is the in-process event bus for conversation lifecycle
// and turn-completion events. It wraps watermill's gochannel pub/sub:
// every subscriber gets its own ordered subscription, and a failing
// subscriber never affects the publisher or its peers.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Event type names published by the engine and session manager.
const (
	EventConversationCreated  = "conversation.created"
	EventConversationSwitched = "conversation.switched"
	EventConversationCleared  = "conversation.cleared"
	EventTurnCommitted        = "conversation.turn_committed"
)

// topic is the single topic all events flow through; the event type
// travels in message metadata.
const topic = "alpha.events"

const metadataEventType = "event_type"

// Event is one bus notification.
type Event struct {
	// Type is one of the Event* constants.
	Type string

	// Payload is the JSON-encoded event body.
	Payload json.RawMessage
}

// Handler consumes bus events. Returning an error or panicking is
// logged and otherwise ignored; delivery to other subscribers
// continues.
type Handler func(ctx context.Context, ev Event) error

// Bus is an in-process publish/subscribe bus.
type Bus struct {
	pubsub *gochannel.GoChannel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bus ready for publishing and subscribing.
func New() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish sends one event to all subscribers. The payload is JSON
// encoded; publishing never blocks on subscriber processing.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", eventType, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataEventType, eventType)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", eventType, err)
	}
	return nil
}

// Subscribe registers a handler. Each subscriber receives events in
// publish order on its own goroutine.
func (b *Bus) Subscribe(handler Handler) error {
	ch, err := b.pubsub.Subscribe(b.ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ch {
			b.dispatch(handler, msg)
			msg.Ack()
		}
	}()
	return nil
}

// dispatch runs the handler for one message, containing panics and
// logging failures.
func (b *Bus) dispatch(handler Handler, msg *message.Message) {
	ev := Event{
		Type:    msg.Metadata.Get(metadataEventType),
		Payload: json.RawMessage(msg.Payload),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus subscriber panicked",
				"event_type", ev.Type,
				"panic", r,
			)
		}
	}()

	if err := handler(b.ctx, ev); err != nil {
		slog.Warn("bus subscriber failed",
			"event_type", ev.Type,
			"error", err,
		)
	}
}

// Close stops delivery and waits for subscriber goroutines to drain.
func (b *Bus) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
