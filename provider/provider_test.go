package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// recordingEvents captures the event surface of a streaming call.
type recordingEvents struct {
	chunks    []string
	completes int
	errors    []string
}

func (r *recordingEvents) TextChunk(text string)  { r.chunks = append(r.chunks, text) }
func (r *recordingEvents) ResponseComplete()      { r.completes++ }
func (r *recordingEvents) StreamError(msg string) { r.errors = append(r.errors, msg) }

func TestSelectKnownKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test")
	t.Setenv("GEMINI_API_KEY", "test")

	for _, key := range Keys() {
		s, err := Select(key, &recordingEvents{})
		if err != nil {
			t.Errorf("Select(%q): %v", key, err)
			continue
		}
		if s.Name() != key {
			t.Errorf("Select(%q).Name() = %q", key, s.Name())
		}
	}
}

func TestSelectUnknownKey(t *testing.T) {
	if _, err := Select("gpt-9", &recordingEvents{}); err == nil {
		t.Error("expected error for unknown provider key")
	}
}

func TestKeyEnv(t *testing.T) {
	cases := map[string]string{
		"claude":       "ANTHROPIC_API_KEY",
		"gemini-pro":   "GEMINI_API_KEY",
		"gemini-flash": "GEMINI_API_KEY",
		"gpt-9":        "",
	}
	for key, want := range cases {
		if got := KeyEnv(key); got != want {
			t.Errorf("KeyEnv(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestEmptyTranscriptShortCircuits(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test")
	ev := &recordingEvents{}
	s, err := Select(KeyClaude, ev)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	got, err := s.StreamResponse(context.Background(), "   ", nil, "prompt")
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty", got)
	}
	if len(ev.chunks) != 0 || ev.completes != 0 || len(ev.errors) != 0 {
		t.Errorf("empty transcript emitted events: %+v", ev)
	}
}

func TestMissingKeyFailsWithoutNetwork(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "construct-only")
	ev := &recordingEvents{}
	s, err := Select(KeyClaude, ev)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	got, err := s.StreamResponse(context.Background(), "hello", nil, "")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty", got)
	}
	if len(ev.errors) != 1 || !strings.Contains(ev.errors[0], "ANTHROPIC_API_KEY") {
		t.Errorf("error events = %v, want one naming the credential", ev.errors)
	}
	if len(ev.chunks) != 0 || ev.completes != 0 {
		t.Errorf("missing key emitted stream events: %+v", ev)
	}
}

func TestFakeChunksConcatenateToReturn(t *testing.T) {
	ev := &recordingEvents{}
	f := NewFake("a streamed response", nil, ev)

	got, err := f.StreamResponse(context.Background(), "question?", nil, "prompt")
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}
	if got != "a streamed response" {
		t.Errorf("response = %q", got)
	}
	if joined := strings.Join(ev.chunks, ""); joined != got {
		t.Errorf("chunks join to %q, return is %q", joined, got)
	}
	if ev.completes != 1 {
		t.Errorf("completes = %d, want 1", ev.completes)
	}
}

func TestFakeFailureReturnsEmpty(t *testing.T) {
	ev := &recordingEvents{}
	f := NewFake("unused", errors.New("backend down"), ev)

	got, err := f.StreamResponse(context.Background(), "hello", nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if got != "" {
		t.Errorf("failed call returned %q, want empty", got)
	}
	if len(ev.errors) != 1 || ev.completes != 0 {
		t.Errorf("events = %+v, want one error and no completion", ev)
	}
}

func TestFakeCancelledEmitsNothingFurther(t *testing.T) {
	ev := &recordingEvents{}
	f := NewFake("never delivered", nil, ev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := f.StreamResponse(ctx, "hello", nil, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty", got)
	}
	if ev.completes != 0 || len(ev.errors) != 0 {
		t.Errorf("cancelled call emitted terminal events: %+v", ev)
	}
}

func TestFakeRecordsPriorTurns(t *testing.T) {
	ev := &recordingEvents{}
	f := NewFake("ok", nil, ev)

	turns := []Turn{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleAssistant, Content: "earlier answer"},
	}
	if _, err := f.StreamResponse(context.Background(), "follow-up", turns, "sys"); err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}
	if len(f.Calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(f.Calls))
	}
	if len(f.Calls[0].Turns) != 2 || f.Calls[0].SystemPrompt != "sys" {
		t.Errorf("call = %+v", f.Calls[0])
	}
}
