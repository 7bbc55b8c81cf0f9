package config

import (
	"flag"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero source rate", func(c *Config) { c.SourceRate = 0 }},
		{"target above source", func(c *Config) { c.TargetRate = c.SourceRate * 2 }},
		{"zero channels", func(c *Config) { c.Channels = 0 }},
		{"zero chunk", func(c *Config) { c.ChunkDuration = 0 }},
		{"negative silence", func(c *Config) { c.SilenceThreshold = -time.Second }},
		{"question above silence", func(c *Config) { c.QuestionThreshold = 2 * c.SilenceThreshold }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestWorkerArgsRoundTrip(t *testing.T) {
	c := Default()
	c.SourceRate = 44100
	c.ChunkDuration = 50 * time.Millisecond

	parsed := Default()
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	parsed.RegisterWorkerFlags(fs)
	if err := fs.Parse(c.WorkerArgs()); err != nil {
		t.Fatal(err)
	}

	if parsed.SourceRate != 44100 {
		t.Errorf("source rate: got %d, want 44100", parsed.SourceRate)
	}
	if parsed.TargetRate != c.TargetRate {
		t.Errorf("target rate: got %d, want %d", parsed.TargetRate, c.TargetRate)
	}
	if parsed.Channels != c.Channels {
		t.Errorf("channels: got %d, want %d", parsed.Channels, c.Channels)
	}
	if parsed.ChunkDuration != 50*time.Millisecond {
		t.Errorf("chunk: got %s, want 50ms", parsed.ChunkDuration)
	}
}

func TestRegisterFlagsParses(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("overhear", flag.ContinueOnError)
	c.RegisterFlags(fs)
	err := fs.Parse([]string{
		"-silence=2s",
		"-question-silence=250ms",
		"-provider=gemini-flash",
		"-persistent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.SilenceThreshold != 2*time.Second {
		t.Errorf("silence: got %s, want 2s", c.SilenceThreshold)
	}
	if c.QuestionThreshold != 250*time.Millisecond {
		t.Errorf("question: got %s, want 250ms", c.QuestionThreshold)
	}
	if c.Provider != "gemini-flash" {
		t.Errorf("provider: got %q, want gemini-flash", c.Provider)
	}
	if !c.Persistent {
		t.Error("persistent flag not applied")
	}
}

func TestDeepgramKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-test-key")
	if got := DeepgramKey(); got != "dg-test-key" {
		t.Errorf("got %q, want dg-test-key", got)
	}
}
