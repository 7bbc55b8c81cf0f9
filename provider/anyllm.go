package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
)

const (
	envAnthropicKey = "ANTHROPIC_API_KEY"
	envGeminiKey    = "GEMINI_API_KEY"

	defaultMaxTokens = 768
)

// anyllmStreamer implements Streamer over an any-llm-go backend.
type anyllmStreamer struct {
	backend anyllmlib.Provider
	name    string
	model   string
	keyEnv  string // credential variable; empty value means degraded, not dead
	events  Events
}

func newClaude(events Events) (*anyllmStreamer, error) {
	backend, err := anthropic.New()
	if err != nil {
		return nil, fmt.Errorf("claude backend: %w", err)
	}
	return &anyllmStreamer{
		backend: backend,
		name:    KeyClaude,
		model:   modelClaude,
		keyEnv:  envAnthropicKey,
		events:  events,
	}, nil
}

func newGemini(name, model string, events Events) (*anyllmStreamer, error) {
	backend, err := gemini.New()
	if err != nil {
		return nil, fmt.Errorf("gemini backend: %w", err)
	}
	return &anyllmStreamer{
		backend: backend,
		name:    name,
		model:   model,
		keyEnv:  envGeminiKey,
		events:  events,
	}, nil
}

func (p *anyllmStreamer) Name() string { return p.name }

func (p *anyllmStreamer) StreamResponse(ctx context.Context, transcript string, turns []Turn, systemPrompt string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", ErrNoSpeech
	}
	if os.Getenv(p.keyEnv) == "" {
		p.events.StreamError(p.keyEnv + " not set")
		return "", fmt.Errorf("%s: %w", p.keyEnv, ErrNoAPIKey)
	}

	chunks, errs := p.backend.CompletionStream(ctx, p.buildParams(transcript, turns, systemPrompt))

	var full strings.Builder
	for chunk := range chunks {
		if ctx.Err() != nil {
			// Cancelled mid-stream: no further events, nothing recorded.
			return "", ctx.Err()
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			full.WriteString(text)
			p.events.TextChunk(text)
		}
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := <-errs; err != nil {
		msg := fmt.Sprintf("%s error: %v", p.name, err)
		p.events.StreamError(msg)
		return "", fmt.Errorf("%s stream: %w", p.name, err)
	}

	p.events.ResponseComplete()
	return full.String(), nil
}

func (p *anyllmStreamer) buildParams(transcript string, turns []Turn, systemPrompt string) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if systemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: systemPrompt,
		})
	}
	for _, t := range turns {
		messages = append(messages, anyllmlib.Message{
			Role:    t.Role,
			Content: t.Content,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: transcript,
	})

	mt := defaultMaxTokens
	return anyllmlib.CompletionParams{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: &mt,
	}
}
