// Package config holds runtime settings for the capture pipeline and
// their flag bindings. Values come from flags, falling back to
// environment variables loaded via .env where present.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Audio capture
	SourceRate    uint32
	TargetRate    uint32
	Channels      uint32
	ChunkDuration time.Duration

	// Transcription
	Model         string
	Language      string
	EndpointingMs int

	// End-of-utterance detection
	SilenceThreshold  time.Duration
	QuestionThreshold time.Duration

	// AI response
	Provider     string
	SystemPrompt string
	Persistent   bool

	// Diagnostics
	LogPath string
}

func Default() Config {
	return Config{
		SourceRate:        48000,
		TargetRate:        16000,
		Channels:          2,
		ChunkDuration:     100 * time.Millisecond,
		Model:             "nova-3",
		Language:          "en",
		EndpointingMs:     800,
		SilenceThreshold:  1000 * time.Millisecond,
		QuestionThreshold: 500 * time.Millisecond,
		Provider:          "claude",
	}
}

// RegisterFlags binds every tunable to fs. Call before fs.Parse.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.SilenceThreshold, "silence", c.SilenceThreshold, "Silence threshold before a capture is considered complete")
	fs.DurationVar(&c.QuestionThreshold, "question-silence", c.QuestionThreshold, "Shorter silence threshold applied when the transcript ends with a question mark")
	fs.StringVar(&c.Model, "model", c.Model, "Deepgram model")
	fs.StringVar(&c.Language, "lang", c.Language, "Language code for transcription (e.g., en, es, fr)")
	fs.IntVar(&c.EndpointingMs, "endpointing", c.EndpointingMs, "Deepgram endpointing window in milliseconds")
	fs.StringVar(&c.Provider, "provider", c.Provider, "AI provider key (claude, gemini-pro, gemini-flash)")
	fs.StringVar(&c.SystemPrompt, "prompt", c.SystemPrompt, "System prompt prepended to every AI request")
	fs.BoolVar(&c.Persistent, "persistent", c.Persistent, "Carry conversation history across captures")
	fs.StringVar(&c.LogPath, "logpath", c.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
}

// RegisterWorkerFlags binds only the settings the capture worker
// subprocess needs. The parent passes these on the re-exec command line.
func (c *Config) RegisterWorkerFlags(fs *flag.FlagSet) {
	uint32Flag(fs, &c.SourceRate, "source-rate", "Device capture sample rate")
	uint32Flag(fs, &c.TargetRate, "target-rate", "Sample rate sent to transcription")
	uint32Flag(fs, &c.Channels, "channels", "Capture channel count")
	fs.DurationVar(&c.ChunkDuration, "chunk", c.ChunkDuration, "Audio chunk duration")
}

func uint32Flag(fs *flag.FlagSet, p *uint32, name, usage string) {
	fs.Func(name, usage, func(s string) error {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return err
		}
		*p = uint32(v)
		return nil
	})
}

func (c Config) Validate() error {
	if c.SourceRate == 0 || c.TargetRate == 0 {
		return fmt.Errorf("sample rates must be non-zero")
	}
	if c.TargetRate > c.SourceRate {
		return fmt.Errorf("target rate %d exceeds source rate %d", c.TargetRate, c.SourceRate)
	}
	if c.Channels == 0 {
		return fmt.Errorf("channel count must be non-zero")
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive")
	}
	if c.SilenceThreshold <= 0 || c.QuestionThreshold <= 0 {
		return fmt.Errorf("silence thresholds must be positive")
	}
	if c.QuestionThreshold > c.SilenceThreshold {
		return fmt.Errorf("question threshold %s exceeds silence threshold %s", c.QuestionThreshold, c.SilenceThreshold)
	}
	return nil
}

// WorkerArgs renders the capture settings as command-line arguments for
// the worker subprocess.
func (c Config) WorkerArgs() []string {
	return []string{
		fmt.Sprintf("-source-rate=%d", c.SourceRate),
		fmt.Sprintf("-target-rate=%d", c.TargetRate),
		fmt.Sprintf("-channels=%d", c.Channels),
		fmt.Sprintf("-chunk=%s", c.ChunkDuration),
	}
}

// LoadEnv reads a .env file from the working directory if present.
// Missing files are not an error; real environment variables win.
func LoadEnv() {
	_ = godotenv.Load()
}

// DeepgramKey returns the Deepgram API key from the environment.
func DeepgramKey() string {
	return os.Getenv("DEEPGRAM_API_KEY")
}
