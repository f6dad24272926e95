// Package engine drives one chat turn: it streams generation events
// from a provider, reconstructs the assistant message, executes tool
// calls server-side, and commits the finished turn through the
// session manager. Live frames are forwarded fire-and-forget; a turn
// that errors or is cancelled commits nothing.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/debug"
	"github.com/Embedding-Space/Alpha-AI/pkg/observability"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
	"github.com/Embedding-Space/Alpha-AI/pkg/session"
	"github.com/Embedding-Space/Alpha-AI/pkg/tools"
	"github.com/Embedding-Space/Alpha-AI/pkg/transport"
)

// Config holds engine tuning knobs.
type Config struct {
	// MaxToolRounds bounds how many times one turn may return to the
	// provider after executing tools. Zero means the default.
	MaxToolRounds int
}

const defaultMaxToolRounds = 8

// Engine runs chat turns against the active conversation.
type Engine struct {
	sessions  *session.Manager
	registry  *provider.Registry
	executor  tools.Executor
	maxRounds int
}

// New creates an Engine. The executor may be nil when no tool servers
// are configured; tool calls then stay unanswered in the history.
func New(sessions *session.Manager, registry *provider.Registry, executor tools.Executor, cfg Config) *Engine {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	return &Engine{
		sessions:  sessions,
		registry:  registry,
		executor:  executor,
		maxRounds: maxRounds,
	}
}

// Chat runs one turn: the user text is staged, the provider streamed,
// tools executed, and on success the user and assistant messages are
// committed atomically. Frames go to the sink as they happen; on
// failure nothing is committed but delivered frames stand.
func (e *Engine) Chat(ctx context.Context, userText string, sink transport.NotificationSink) error {
	if sink == nil {
		sink = transport.NopSink{}
	}

	start := time.Now()
	var providerTag string

	err := e.sessions.RunTurn(ctx, userText, func(ctx context.Context, modelRef string, history []conversation.Message) (conversation.Message, error) {
		providerTag, _, _ = strings.Cut(modelRef, ":")
		return e.generate(ctx, modelRef, history, sink)
	})

	// The tag stays empty when the turn fails before a provider is
	// resolved; an empty label would pollute the histogram.
	if providerTag != "" {
		observability.TurnDuration.WithLabelValues(providerTag).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		// An aborted stream means the consumer is gone; there is
		// nobody left to tell.
		if errors.Is(err, ErrStreamAborted) {
			observability.TurnsTotal.WithLabelValues("aborted").Inc()
		} else {
			observability.TurnsTotal.WithLabelValues("error").Inc()
			e.send(ctx, sink, transport.ErrorFrame(err.Error()))
		}
		return err
	}

	observability.TurnsTotal.WithLabelValues("committed").Inc()
	e.send(ctx, sink, transport.DoneFrame())
	return nil
}

// generate drives the provider stream for one turn, running tool
// rounds until the model stops calling tools or the round budget is
// spent, and returns the finalized assistant message.
func (e *Engine) generate(ctx context.Context, modelRef string, history []conversation.Message, sink transport.NotificationSink) (conversation.Message, error) {
	var zero conversation.Message

	prov, model, err := e.registry.Resolve(modelRef)
	if err != nil {
		return zero, err
	}

	specs, err := e.toolSpecs(ctx)
	if err != nil {
		return zero, err
	}

	builder := NewBuilder(modelRef)
	turnHistory := history

	for round := 0; ; round++ {
		debug.Log("engine", "generation round",
			"round", round,
			"model", modelRef,
			"history_len", len(turnHistory),
		)

		// Each generation pass gets its own cancellable context so
		// that abandoning the stream mid-pass (a Feed error) releases
		// the provider's producer goroutine and its connection.
		passCtx, cancelPass := context.WithCancel(ctx)
		ch, err := prov.Generate(passCtx, model, turnHistory, specs)
		if err != nil {
			cancelPass()
			if ctx.Err() != nil {
				return zero, ErrStreamAborted
			}
			return zero, &UpstreamGenerationError{Provider: prov.Name(), Err: err}
		}

		err = e.consume(ctx, ch, builder, sink, prov.Name())
		cancelPass()
		if err != nil {
			return zero, err
		}

		calls := builder.UnansweredCalls()
		if len(calls) == 0 || e.executor == nil {
			break
		}
		if round >= e.maxRounds {
			slog.Warn("tool round limit reached, finishing turn with unanswered calls",
				"model", modelRef,
				"unanswered", len(calls),
				"max_rounds", e.maxRounds,
			)
			break
		}

		for _, call := range calls {
			if err := e.runTool(ctx, call, builder, sink); err != nil {
				return zero, err
			}
		}

		// Next pass sees the committed history plus the in-progress
		// assistant message with its calls and returns.
		next := make([]conversation.Message, 0, len(history)+1)
		next = append(next, history...)
		next = append(next, builder.Snapshot())
		turnHistory = next
	}

	return builder.Finalize()
}

// consume feeds one generation pass through the builder, forwarding
// frames as they are produced.
func (e *Engine) consume(ctx context.Context, ch <-chan provider.Event, builder *Builder, sink transport.NotificationSink, providerName string) error {
	for ev := range ch {
		if ev.Type == provider.EventError {
			if ctx.Err() != nil {
				return ErrStreamAborted
			}
			return &UpstreamGenerationError{Provider: providerName, Err: ev.Err}
		}

		frames, err := builder.Feed(ev)
		if err != nil {
			return err
		}
		for _, frame := range frames {
			e.send(ctx, sink, frame)
		}
	}

	if ctx.Err() != nil {
		return ErrStreamAborted
	}
	return nil
}

// runTool executes one tool call and feeds the synthesized result
// back into the builder. A tool that runs but fails produces a
// model-visible error result; a transport failure aborts the turn.
func (e *Engine) runTool(ctx context.Context, call conversation.ToolCallPart, builder *Builder, sink transport.NotificationSink) error {
	slog.Info("invoking tool", "tool", call.ToolName, "call_id", call.CallID)

	result, err := e.executor.Invoke(ctx, tools.Call{
		ID:   call.CallID,
		Name: call.ToolName,
		Args: call.Args,
	})
	if err != nil {
		observability.ToolInvocationsTotal.WithLabelValues(call.ToolName, "transport_error").Inc()
		if ctx.Err() != nil {
			return ErrStreamAborted
		}
		return err
	}
	if result.IsError {
		observability.ToolInvocationsTotal.WithLabelValues(call.ToolName, "error").Inc()
		slog.Warn("tool reported error", "tool", call.ToolName, "call_id", call.CallID)
	} else {
		observability.ToolInvocationsTotal.WithLabelValues(call.ToolName, "ok").Inc()
	}

	frames, err := builder.Feed(provider.Event{
		Type:     provider.EventToolResult,
		CallID:   call.CallID,
		ToolName: call.ToolName,
		Content:  result.Output,
	})
	if err != nil {
		return err
	}
	for _, frame := range frames {
		e.send(ctx, sink, frame)
	}
	return nil
}

// toolSpecs advertises the executor's tools to the provider.
func (e *Engine) toolSpecs(ctx context.Context) ([]provider.ToolSpec, error) {
	if e.executor == nil {
		return nil, nil
	}
	defs, err := e.executor.Tools(ctx)
	if err != nil {
		return nil, err
	}
	specs := make([]provider.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, provider.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return specs, nil
}

// send forwards one frame, logging delivery failures. Frames are
// fire-and-forget; a lost frame never fails the turn.
func (e *Engine) send(ctx context.Context, sink transport.NotificationSink, frame transport.Frame) {
	observability.FramesTotal.WithLabelValues(string(frame.Type)).Inc()
	if err := sink.Send(ctx, frame); err != nil {
		slog.Warn("dropping live frame", "type", frame.Type, "error", err)
	}
}
