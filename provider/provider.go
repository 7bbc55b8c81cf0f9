// Package provider streams AI responses to a finalized transcript.
// Backends share one contract and are chosen by a runtime key, so the
// orchestrator never branches on which vendor is active.
package provider

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior conversation turn, passed by value: an in-flight call
// never observes later mutations of the caller's history.
type Turn struct {
	Role    string
	Content string
}

// Events receives the incremental surface of a streaming call. A
// successful call emits zero or more TextChunk and exactly one
// ResponseComplete; a failed call emits exactly one StreamError and
// neither of the others afterwards.
type Events interface {
	TextChunk(text string)
	ResponseComplete()
	StreamError(msg string)
}

// ErrNoSpeech is returned when the transcript is empty after trimming.
// No network call is made and no events are emitted.
var ErrNoSpeech = errors.New("no speech detected")

// ErrNoAPIKey is returned when the backend's credential is not configured.
var ErrNoAPIKey = errors.New("API key not configured")

// Streamer submits a transcript (plus optional prior turns) to an AI
// backend and relays the response incrementally through Events.
//
// The returned string is the concatenation of every emitted chunk. On any
// failure it is empty so the caller never records a partial turn.
type Streamer interface {
	Name() string
	StreamResponse(ctx context.Context, transcript string, turns []Turn, systemPrompt string) (string, error)
}

// Backend keys and the models behind them.
const (
	KeyClaude      = "claude"
	KeyGeminiPro   = "gemini-pro"
	KeyGeminiFlash = "gemini-flash"

	modelClaude      = "claude-sonnet-4-5-20250929"
	modelGeminiPro   = "gemini-3-pro-preview"
	modelGeminiFlash = "gemini-3-flash-preview"
)

// Keys lists the selectable backends.
func Keys() []string {
	return []string{KeyClaude, KeyGeminiPro, KeyGeminiFlash}
}

// KeyEnv names the environment variable holding a backend's credential,
// or "" for an unknown key.
func KeyEnv(key string) string {
	switch key {
	case KeyClaude:
		return envAnthropicKey
	case KeyGeminiPro, KeyGeminiFlash:
		return envGeminiKey
	}
	return ""
}

// Select builds the Streamer for a backend key.
func Select(key string, events Events) (Streamer, error) {
	switch key {
	case KeyClaude:
		return newClaude(events)
	case KeyGeminiPro:
		return newGemini(KeyGeminiPro, modelGeminiPro, events)
	case KeyGeminiFlash:
		return newGemini(KeyGeminiFlash, modelGeminiFlash, events)
	}
	return nil, fmt.Errorf("unknown provider %q (use claude, gemini-pro, or gemini-flash)", key)
}
