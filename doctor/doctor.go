// Package doctor runs standalone environment checks so setup problems
// surface before the first capture, not during it.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"overhear/audio"
	"overhear/config"
	"overhear/log"
	"overhear/provider"
	"overhear/transcriber"
)

const connectTimeout = 5 * time.Second

// Run executes the diagnostic checks and returns an exit code
// (0 = all pass, 1 = any fail).
func Run(cfg config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("overhear doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true
	if !checkCredentials(cfg) {
		allPass = false
	}
	if !checkLoopback(cfg) {
		allPass = false
	}
	if !checkTranscription(cfg) {
		allPass = false
	}
	if !checkLogDir(cfg) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkCredentials(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[1/4] Credentials")

	pass := true
	if config.DeepgramKey() == "" {
		fmt.Println("  FAIL: DEEPGRAM_API_KEY not set")
		pass = false
	} else {
		fmt.Println("  PASS: DEEPGRAM_API_KEY set")
	}

	if env := provider.KeyEnv(cfg.Provider); env == "" {
		fmt.Printf("  FAIL: unknown provider %q (known: %v)\n", cfg.Provider, provider.Keys())
		pass = false
	} else if os.Getenv(env) == "" {
		fmt.Printf("  FAIL: %s not set (needed by provider %q)\n", env, cfg.Provider)
		pass = false
	} else {
		fmt.Printf("  PASS: %s set\n", env)
	}
	return pass
}

func checkLoopback(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[2/4] Loopback audio device")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list output devices: %v\n", err)
		return false
	}
	for _, d := range devices {
		fmt.Printf("  output: %s\n", d.Name)
	}

	dev, err := ctx.NewLoopback(audio.CaptureConfig{
		SampleRate: cfg.SourceRate,
		Channels:   cfg.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open loopback capture: %v\n", err)
		return false
	}
	name := dev.DeviceName()
	dev.Close()
	fmt.Printf("  PASS: loopback capture opens (%s)\n", name)
	return true
}

func checkTranscription(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Transcription connectivity")

	d := transcriber.NewDeepgram(config.DeepgramKey(), transcriber.Config{
		SampleRate:    int(cfg.TargetRate),
		Channels:      1,
		Model:         cfg.Model,
		Language:      cfg.Language,
		EndpointingMs: cfg.EndpointingMs,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	sess, err := d.Connect(ctx)
	if err != nil {
		if errors.Is(err, transcriber.ErrUnauthorized) {
			fmt.Println("  FAIL: Deepgram rejected the API key")
		} else {
			fmt.Printf("  FAIL: cannot connect: %v\n", err)
		}
		return false
	}
	sess.Close()
	fmt.Println("  PASS: connected and closed cleanly")
	return true
}

func checkLogDir(cfg config.Config) bool {
	fmt.Println()
	fmt.Println("[4/4] Log directory")

	dir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Printf("  FAIL: cannot resolve log directory: %v\n", err)
		return false
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  FAIL: cannot create %s: %v\n", dir, err)
		return false
	}
	probe := filepath.Join(dir, ".doctor_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  FAIL: cannot write to %s: %v\n", dir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  PASS: %s is writable\n", dir)
	return true
}
