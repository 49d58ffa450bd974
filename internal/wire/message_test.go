package wire_test

import (
	"errors"
	"testing"

	"github.com/atluriin/voicelink/internal/wire"
)

func TestDecode_KnownTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want wire.Type
	}{
		{"transcript", `{"type":"transcript","text":"hello"}`, wire.TypeTranscript},
		{"chunk", `{"type":"answer_suggestion_chunk","chunk":"Hi","is_thinking":false}`, wire.TypeAnswerSuggestionChunk},
		{"sync", `{"type":"sync_state","active_question":"Q","partial_answer":"A","is_streaming":true,"assist_intensity":2}`, wire.TypeSyncState},
		{"hint", `{"type":"assist_hint","payload":{"rule_id":"r1","message":"add metrics","severity":"high","priority":1,"confidence":0.9}}`, wire.TypeAssistHint},
		{"ping", `{"type":"ping"}`, wire.TypePing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := wire.Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if msg.Type != tt.want {
				t.Errorf("type: got %q, want %q", msg.Type, tt.want)
			}
		})
	}
}

func TestDecode_FieldExtraction(t *testing.T) {
	raw := `{"type":"sync_state","active_question":"Tell me about scaling","partial_answer":"I led","is_streaming":true,"assist_intensity":3}`
	msg, err := wire.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.ActiveQuestion != "Tell me about scaling" {
		t.Errorf("active question: got %q", msg.ActiveQuestion)
	}
	if msg.PartialAnswer != "I led" {
		t.Errorf("partial answer: got %q", msg.PartialAnswer)
	}
	if !msg.IsStreaming {
		t.Error("is_streaming: got false, want true")
	}
	if msg.AssistIntensity != 3 {
		t.Errorf("assist intensity: got %d, want 3", msg.AssistIntensity)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"type":`},
		{"missing type", `{"text":"hello"}`},
		{"unknown type", `{"type":"emotional_wave"}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wire.Decode([]byte(tt.raw))
			if !errors.Is(err, wire.ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEncode_Builders(t *testing.T) {
	tests := []struct {
		name string
		msg  wire.Message
		want string
	}{
		{"stop", wire.StopMessage(), `{"type":"stop"}`},
		{"sync request", wire.SyncStateRequest(), `{"type":"sync_state_request"}`},
		{"role", wire.RoleMessage("behavioral"), `{"type":"role","role":"behavioral"}`},
		{"pong", wire.PongMessage(1700000000000), `{"type":"pong","ts":1700000000000}`},
		{"set question", wire.SetQuestion("Why Go?"), `{"type":"set_question","question":"Why Go?"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := wire.Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want wire.CloseClass
	}{
		{1000, wire.CloseNormal},
		{1001, wire.CloseTransient},
		{1006, wire.CloseTransient},
		{1008, wire.CloseFatal},
		{4401, wire.CloseFatal},
		{-1, wire.CloseTransient},
		{1011, wire.CloseTransient},
	}
	for _, tt := range tests {
		if got := wire.Classify(tt.code); got != tt.want {
			t.Errorf("Classify(%d): got %v, want %v", tt.code, got, tt.want)
		}
	}
}
