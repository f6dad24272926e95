package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
)

func newConv(model string) *conversation.Conversation {
	return conversation.New(model, "default", &conversation.SystemPromptPart{Content: "You are helpful."})
}

func TestSaveAssignsIdentity(t *testing.T) {
	store := New()
	defer store.Close()

	conv := newConv("ollama:llama3.2")
	version, err := store.Save(context.Background(), conv)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if !storage.ValidateConversationID(conv.ID) {
		t.Errorf("assigned ID %q is not a valid conversation ID", conv.ID)
	}
	if conv.Version != 1 {
		t.Errorf("conv.Version = %d, want 1", conv.Version)
	}
}

func TestVersionMonotonicity(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	conv := newConv("ollama:llama3.2")
	if _, err := store.Save(ctx, conv); err != nil {
		t.Fatalf("insert: %v", err)
	}

	for want := int64(2); want <= 4; want++ {
		conv.Append(conversation.Message{
			Role:  conversation.RoleUser,
			Parts: []conversation.Part{conversation.UserPromptPart{Content: "hi"}},
		})
		version, err := store.Save(ctx, conv)
		if err != nil {
			t.Fatalf("save %d: %v", want, err)
		}
		if version != want {
			t.Errorf("version = %d, want %d", version, want)
		}
	}
}

func TestStaleVersionConflict(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	conv := newConv("ollama:llama3.2")
	if _, err := store.Save(ctx, conv); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Another actor saves first.
	other, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := store.Save(ctx, other); err != nil {
		t.Fatalf("concurrent save: %v", err)
	}

	// The stale copy must now conflict, not overwrite.
	if _, err := store.Save(ctx, conv); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// Reload and retry succeeds.
	fresh, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := store.Save(ctx, fresh); err != nil {
		t.Errorf("retry after reload: %v", err)
	}
}

func TestLoadRoundTripsHistory(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	conv := newConv("ollama:llama3.2")
	conv.Append(conversation.Message{
		Role: conversation.RoleAssistant,
		Parts: []conversation.Part{
			conversation.TextPart{Content: "Checking."},
			conversation.ToolCallPart{
				ToolName: "get_weather",
				Args:     map[string]any{"city": "Paris"},
				CallID:   "call_1",
			},
			conversation.ToolReturnPart{
				ToolName: "get_weather",
				Content:  "12C",
				CallID:   "call_1",
			},
		},
	})
	if _, err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.History) != len(conv.History) {
		t.Fatalf("history length = %d, want %d", len(loaded.History), len(conv.History))
	}
	call, ok := loaded.History[1].Parts[1].(conversation.ToolCallPart)
	if !ok || call.Args["city"] != "Paris" {
		t.Errorf("tool call part = %+v", loaded.History[1].Parts[1])
	}

	// The loaded copy is independent of the stored blob.
	loaded.History[0].Parts[0] = conversation.SystemPromptPart{Content: "mutated"}
	again, err := store.Load(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if sp := again.History[0].Parts[0].(conversation.SystemPromptPart); sp.Content == "mutated" {
		t.Error("store returned a shared history instance")
	}
}

func TestLoadMostRecent(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	if _, err := store.LoadMostRecent(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty store err = %v, want ErrNotFound", err)
	}

	first := newConv("ollama:llama3.2")
	if _, err := store.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := newConv("ollama:qwen3")
	if _, err := store.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	recent, err := store.LoadMostRecent(ctx)
	if err != nil {
		t.Fatalf("LoadMostRecent: %v", err)
	}
	if recent.ID != second.ID {
		t.Errorf("most recent = %s, want %s", recent.ID, second.ID)
	}

	// Updating the first conversation makes it most recent again.
	time.Sleep(2 * time.Millisecond)
	if _, err := store.Save(ctx, first); err != nil {
		t.Fatalf("update first: %v", err)
	}
	recent, err = store.LoadMostRecent(ctx)
	if err != nil {
		t.Fatalf("LoadMostRecent: %v", err)
	}
	if recent.ID != first.ID {
		t.Errorf("most recent after update = %s, want %s", recent.ID, first.ID)
	}
}

func TestDelete(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	conv := newConv("ollama:llama3.2")
	if _, err := store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, conv.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, conv.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
