package provider

import (
	"context"
	"strings"
)

// Fake streams a canned response in fixed-size chunks. Used by
// orchestration tests in place of a live backend.
type Fake struct {
	Response  string
	Err       error
	ChunkSize int
	events    Events

	// Calls records the inputs of every StreamResponse invocation.
	Calls []FakeCall
}

type FakeCall struct {
	Transcript   string
	Turns        []Turn
	SystemPrompt string
}

func NewFake(response string, err error, events Events) *Fake {
	return &Fake{Response: response, Err: err, ChunkSize: 4, events: events}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) StreamResponse(ctx context.Context, transcript string, turns []Turn, systemPrompt string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", ErrNoSpeech
	}

	f.Calls = append(f.Calls, FakeCall{
		Transcript:   transcript,
		Turns:        append([]Turn(nil), turns...),
		SystemPrompt: systemPrompt,
	})

	if f.Err != nil {
		f.events.StreamError(f.Err.Error())
		return "", f.Err
	}

	var full strings.Builder
	for i := 0; i < len(f.Response); i += f.ChunkSize {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		end := min(i+f.ChunkSize, len(f.Response))
		chunk := f.Response[i:end]
		full.WriteString(chunk)
		f.events.TextChunk(chunk)
	}
	f.events.ResponseComplete()
	return full.String(), nil
}
