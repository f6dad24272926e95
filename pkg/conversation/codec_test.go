package conversation

import (
	"errors"
	"reflect"
	"testing"
)

func TestHistoryRoundTrip(t *testing.T) {
	history := []Message{
		{Role: RoleSystem, Parts: []Part{
			SystemPromptPart{Content: "You are Alpha."},
		}},
		{Role: RoleUser, Parts: []Part{
			UserPromptPart{Content: "what time is it?"},
		}},
		{Role: RoleAssistant, Parts: []Part{
			TextPart{Content: "Let me check."},
			ToolCallPart{ToolName: "current_time", Args: map[string]any{"tz": "UTC", "precision": float64(2)}, CallID: "call_1"},
			ToolReturnPart{ToolName: "current_time", Content: "12:00:00", CallID: "call_1"},
			TextPart{Content: "It is noon."},
		}},
	}

	blob, err := MarshalHistory(history)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := UnmarshalHistory(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(history, decoded) {
		t.Errorf("round trip mismatch:\n got: %#v\nwant: %#v", decoded, history)
	}
}

func TestHistoryRoundTrip_EmptyHistory(t *testing.T) {
	blob, err := MarshalHistory(nil)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(blob) != "[]" {
		t.Errorf("expected empty history to serialize as [], got %s", blob)
	}

	decoded, err := UnmarshalHistory(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty history, got %d messages", len(decoded))
	}
}

func TestUnmarshalHistory_Malformed(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"not json", "{"},
		{"wrong shape", `{"role":"user"}`},
		{"unknown part type", `[{"role":"user","parts":[{"type":"image","content":"x"}]}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalHistory([]byte(tc.blob))
			if err == nil {
				t.Fatal("expected error")
			}
			var serr *SerializationError
			if !errors.As(err, &serr) {
				t.Errorf("expected *SerializationError, got %T: %v", err, err)
			}
		})
	}
}

func TestPartOrderPreserved(t *testing.T) {
	// Ordering of text and tool parts within a message must survive the
	// codec exactly as appended.
	msg := Message{Role: RoleAssistant, Parts: []Part{
		TextPart{Content: "A"},
		ToolCallPart{ToolName: "x", CallID: "call_1"},
		ToolReturnPart{ToolName: "x", Content: "y", CallID: "call_1"},
		TextPart{Content: "B"},
	}}

	blob, err := MarshalHistory([]Message{msg})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	decoded, err := UnmarshalHistory(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	kinds := []PartKind{KindText, KindToolCall, KindToolReturn, KindText}
	if len(decoded) != 1 || len(decoded[0].Parts) != len(kinds) {
		t.Fatalf("unexpected decoded shape: %#v", decoded)
	}
	for i, want := range kinds {
		if got := decoded[0].Parts[i].Kind(); got != want {
			t.Errorf("part %d: expected kind %s, got %s", i, want, got)
		}
	}
}
