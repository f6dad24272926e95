package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/engine"
	"github.com/Embedding-Space/Alpha-AI/pkg/provider"
	"github.com/Embedding-Space/Alpha-AI/pkg/session"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage/memory"
	"github.com/Embedding-Space/Alpha-AI/pkg/transport"
)

// scriptedProvider replays canned event scripts, one per Generate call.
type scriptedProvider struct {
	scripts [][]provider.Event
	calls   int
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Generate(ctx context.Context, model string, history []conversation.Message, tools []provider.ToolSpec) (<-chan provider.Event, error) {
	if p.calls >= len(p.scripts) {
		p.calls++
		ch := make(chan provider.Event)
		close(ch)
		return ch, nil
	}
	script := p.scripts[p.calls]
	p.calls++

	ch := make(chan provider.Event, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "test-model", OwnedBy: "fake"}}, nil
}

func (p *scriptedProvider) Close() error { return nil }

// testStack is the full adapter wiring over in-memory collaborators.
type testStack struct {
	adapter  *Adapter
	sessions *session.Manager
	handler  http.Handler
}

func newTestStack(t *testing.T, scripts [][]provider.Event) *testStack {
	t.Helper()

	prov := &scriptedProvider{scripts: scripts}
	registry, err := provider.NewRegistry(map[string]provider.Factory{
		"fake": func() (provider.Provider, error) { return prov, nil },
	})
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	store := memory.New()
	prompts := session.StaticLoader{"sys.md": "You are a test assistant."}
	sessions := session.NewManager(store, nil, prompts, "fake:test-model")

	eng := engine.New(sessions, registry, nil, engine.Config{})
	adapter := NewAdapter(eng, sessions, registry, store, DefaultConfig())

	return &testStack{
		adapter:  adapter,
		sessions: sessions,
		handler:  adapter.Handler(),
	}
}

// withActive seeds an active conversation.
func (s *testStack) withActive(t *testing.T) *conversation.Conversation {
	t.Helper()
	conv, err := s.sessions.Create(context.Background(), "", "sys.md")
	if err != nil {
		t.Fatalf("creating conversation: %v", err)
	}
	return conv
}

func (s *testStack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeFrames(t *testing.T, body string) []transport.Frame {
	t.Helper()
	var frames []transport.Frame
	for _, payload := range parseSSE(t, body) {
		if payload == "[DONE]" {
			continue
		}
		var frame transport.Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("parsing frame %q: %v", payload, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestChat_StreamsTurn(t *testing.T) {
	stack := newTestStack(t, [][]provider.Event{{
		{Type: provider.EventStart},
		{Type: provider.EventTextDelta, Content: "Hel"},
		{Type: provider.EventTextDelta, Content: "lo"},
		{Type: provider.EventEnd},
	}})
	stack.withActive(t)

	rec := stack.do(t, "POST", "/api/v1/chat", `{"message":"hi"}`)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream (body: %s)", ct, rec.Body.String())
	}

	frames := decodeFrames(t, rec.Body.String())
	wantTypes := []transport.FrameType{
		transport.FrameStart,
		transport.FrameTextDelta,
		transport.FrameTextDelta,
		transport.FrameDone,
	}
	if len(frames) != len(wantTypes) {
		t.Fatalf("frames = %d, want %d: %+v", len(frames), len(wantTypes), frames)
	}
	for i, want := range wantTypes {
		if frames[i].Type != want {
			t.Errorf("frame %d type = %s, want %s", i, frames[i].Type, want)
		}
	}
	if frames[1].Content+frames[2].Content != "Hello" {
		t.Errorf("text = %q, want Hello", frames[1].Content+frames[2].Content)
	}

	payloads := parseSSE(t, rec.Body.String())
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Errorf("stream does not end with [DONE]")
	}

	// The turn is committed: system + user + assistant.
	conv := stack.sessions.Active()
	if len(conv.History) != 3 {
		t.Errorf("history length = %d, want 3", len(conv.History))
	}
	if conv.Version != 2 {
		t.Errorf("version = %d, want 2", conv.Version)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	stack := newTestStack(t, nil)
	stack.withActive(t)

	rec := stack.do(t, "POST", "/api/v1/chat", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChat_NoActiveConversation(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, "POST", "/api/v1/chat", `{"message":"hi"}`)

	// The failure surfaces as an error frame on the stream.
	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0].Type != transport.FrameError {
		t.Fatalf("frames = %+v, want a single error frame", frames)
	}
	if !strings.Contains(frames[0].Error, "no active conversation") {
		t.Errorf("error = %q, want no active conversation", frames[0].Error)
	}
}

func TestGetConversation(t *testing.T) {
	stack := newTestStack(t, [][]provider.Event{{
		{Type: provider.EventStart},
		{Type: provider.EventTextDelta, Content: "reply"},
		{Type: provider.EventEnd},
	}})
	created := stack.withActive(t)
	stack.do(t, "POST", "/api/v1/chat", `{"message":"hi"}`)

	rec := stack.do(t, "GET", "/api/v1/conversation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID            string          `json:"id"`
		Model         string          `json:"model"`
		Version       int64           `json:"version"`
		TotalMessages int             `json:"total_messages"`
		Messages      json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.ID != created.ID {
		t.Errorf("id = %q, want %q", resp.ID, created.ID)
	}
	if resp.TotalMessages != 3 {
		t.Errorf("total_messages = %d, want 3", resp.TotalMessages)
	}

	history, err := conversation.UnmarshalHistory(resp.Messages)
	if err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("messages = %d, want 3", len(history))
	}

	// limit=1 returns only the assistant message.
	rec = stack.do(t, "GET", "/api/v1/conversation?limit=1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing limited response: %v", err)
	}
	limited, err := conversation.UnmarshalHistory(resp.Messages)
	if err != nil {
		t.Fatalf("decoding limited messages: %v", err)
	}
	if len(limited) != 1 || limited[0].Role != conversation.RoleAssistant {
		t.Errorf("limited messages = %+v, want single assistant message", limited)
	}
}

func TestGetConversation_NoActive(t *testing.T) {
	stack := newTestStack(t, nil)
	rec := stack.do(t, "GET", "/api/v1/conversation", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateConversation(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, "POST", "/api/v1/conversations", `{"system_prompt_ref":"sys.md"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Version int64  `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Model != "fake:test-model" {
		t.Errorf("model = %q, want fake:test-model", resp.Model)
	}
	if resp.Version != 1 {
		t.Errorf("version = %d, want 1", resp.Version)
	}
	if stack.sessions.Active() == nil {
		t.Error("no active conversation after create")
	}
}

func TestActivateConversation(t *testing.T) {
	stack := newTestStack(t, nil)
	first := stack.withActive(t)

	// Create a second conversation; the first is released.
	second, err := stack.sessions.Create(context.Background(), "", "sys.md")
	if err != nil {
		t.Fatalf("creating second conversation: %v", err)
	}

	rec := stack.do(t, "POST", "/api/v1/conversations/"+first.ID+"/activate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if active := stack.sessions.Active(); active.ID != first.ID {
		t.Errorf("active = %s, want %s", active.ID, first.ID)
	}
	_ = second
}

func TestActivateConversation_Errors(t *testing.T) {
	stack := newTestStack(t, nil)
	stack.withActive(t)

	rec := stack.do(t, "POST", "/api/v1/conversations/not-a-valid-id/activate", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", rec.Code)
	}

	rec = stack.do(t, "POST", "/api/v1/conversations/conv_aaaaaaaaaaaaaaaaaaaaaaaa/activate", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestClearConversation(t *testing.T) {
	stack := newTestStack(t, [][]provider.Event{{
		{Type: provider.EventStart},
		{Type: provider.EventTextDelta, Content: "reply"},
		{Type: provider.EventEnd},
	}})
	stack.withActive(t)
	stack.do(t, "POST", "/api/v1/chat", `{"message":"hi"}`)

	rec := stack.do(t, "DELETE", "/api/v1/conversation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	conv := stack.sessions.Active()
	if len(conv.History) != 1 {
		t.Errorf("history after clear = %d messages, want 1", len(conv.History))
	}
}

func TestClearConversation_NoActive(t *testing.T) {
	stack := newTestStack(t, nil)
	rec := stack.do(t, "DELETE", "/api/v1/conversation", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, "GET", "/api/v1/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "fake:test-model" {
		t.Errorf("models = %+v, want [fake:test-model]", resp.Data)
	}
}

func TestHealth(t *testing.T) {
	stack := newTestStack(t, nil)

	rec := stack.do(t, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s, want status ok", rec.Body.String())
	}
}
