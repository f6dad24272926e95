package openaicompat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
)

// collect runs parseSSEStream over the given SSE payload and returns
// all emitted events.
func collect(t *testing.T, sse string) []provider.Event {
	t.Helper()
	ch := make(chan provider.Event, 64)
	parseSSEStream(context.Background(), strings.NewReader(sse), ch)
	close(ch)

	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestParseSSEStream_TextDeltas(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}

data: {"choices":[{"index":0,"delta":{"content":"Hel"}}]}

data: {"choices":[{"index":0,"delta":{"content":"lo"}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`
	events := collect(t, sse)

	want := []provider.Event{
		{Type: provider.EventTextDelta, Content: "Hel"},
		{Type: provider.EventTextDelta, Content: "lo"},
		{Type: provider.EventEnd},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, ev := range events {
		if ev.Type != want[i].Type || ev.Content != want[i].Content {
			t.Errorf("event[%d] = %+v, want %+v", i, ev, want[i])
		}
	}
}

func TestParseSSEStream_ToolCallAssembly(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","function":{"name":"get_weather","arguments":""}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`
	events := collect(t, sse)

	var start, ready *provider.Event
	var argDeltas []string
	for i := range events {
		switch events[i].Type {
		case provider.EventToolCallStart:
			start = &events[i]
		case provider.EventToolCallArgsDelta:
			argDeltas = append(argDeltas, events[i].Args)
		case provider.EventToolCallReady:
			ready = &events[i]
		}
	}

	if start == nil || start.CallID != "call_abc" || start.ToolName != "get_weather" {
		t.Fatalf("tool call start = %+v", start)
	}
	if got := strings.Join(argDeltas, ""); got != `{"city":"Paris"}` {
		t.Errorf("accumulated arg deltas = %q", got)
	}
	if ready == nil || ready.Args != `{"city":"Paris"}` {
		t.Fatalf("tool call ready = %+v", ready)
	}
	if events[len(events)-1].Type != provider.EventEnd {
		t.Errorf("last event = %v, want end", events[len(events)-1].Type)
	}
}

func TestParseSSEStream_MintsCallIDWhenMissing(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"get_time","arguments":"{}"}}]}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`
	events := collect(t, sse)

	for _, ev := range events {
		if ev.Type == provider.EventToolCallReady {
			if !strings.HasPrefix(ev.CallID, "call_") || len(ev.CallID) <= len("call_") {
				t.Errorf("minted call id = %q", ev.CallID)
			}
			return
		}
	}
	t.Fatal("no tool call ready event emitted")
}

func TestParseSSEStream_EmptyArgsBecomeObject(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"ping","arguments":""}}]}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]

`
	events := collect(t, sse)

	for _, ev := range events {
		if ev.Type == provider.EventToolCallReady {
			if ev.Args != "{}" {
				t.Errorf("args = %q, want {}", ev.Args)
			}
			return
		}
	}
	t.Fatal("no tool call ready event emitted")
}

func TestParseSSEStream_SkipsMalformedChunk(t *testing.T) {
	sse := `data: {not json}

data: {"choices":[{"index":0,"delta":{"content":"ok"}}]}

data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`
	events := collect(t, sse)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Type != provider.EventTextDelta || events[0].Content != "ok" {
		t.Errorf("event[0] = %+v", events[0])
	}
}

func TestParseSSEStream_EOFWithoutFinishIsError(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{"content":"partial"}}]}

`
	events := collect(t, sse)

	last := events[len(events)-1]
	if last.Type != provider.EventError || last.Err == nil {
		t.Fatalf("last event = %+v, want error", last)
	}
}

func TestParseSSEStream_DoneSentinelStopsReading(t *testing.T) {
	sse := `data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

data: {"choices":[{"index":0,"delta":{"content":"после"}}]}

`
	events := collect(t, sse)

	for _, ev := range events {
		if ev.Type == provider.EventTextDelta {
			t.Errorf("text delta after [DONE]: %+v", ev)
		}
	}
}

func TestParseSSEStream_CancelledConsumerUnblocksSends(t *testing.T) {
	// Far more deltas than the channel buffer holds, and nobody
	// receiving. Once the context is cancelled the parser must return
	// instead of blocking on a full channel.
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString(`data: {"choices":[{"index":0,"delta":{"content":"x"}}]}` + "\n\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan provider.Event, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		parseSSEStream(ctx, strings.NewReader(sb.String()), ch)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("parser did not return after the context was cancelled")
	}
}
