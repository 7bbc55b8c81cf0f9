package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"overhear/audio"
	"overhear/config"
	"overhear/cue"
	"overhear/doctor"
	"overhear/log"
	"overhear/pipeline"
	"overhear/provider"
	"overhear/session"
	"overhear/shutdown"
	"overhear/worker"

	"golang.org/x/term"
)

var version = "dev"

func main() {
	// The capture worker is a re-exec of this binary. Dispatch before
	// touching flags, env files, or logging: the child owns nothing but
	// the audio device and its two pipes.
	if len(os.Args) > 1 && os.Args[1] == "-capture-worker" {
		os.Exit(runCaptureWorker(os.Args[2:]))
	}

	config.LoadEnv()

	cfg := config.Default()
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	listFlag := flag.Bool("list-devices", false, "List output devices and exit")
	noWarmFlag := flag.Bool("no-warm", false, "Skip pre-warming; first capture cold-starts")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if *versionFlag {
		fmt.Println("overhear", version)
		return
	}
	if *listFlag {
		os.Exit(listDevices())
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	if dir, err := log.ResolveDir(cfg.LogPath); err == nil {
		log.SetDir(dir)
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		}
	}
	defer log.Close()
	log.Infof("overhear %s starting, provider=%s", version, cfg.Provider)

	if err := run(cfg, *noWarmFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCaptureWorker(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("capture-worker", flag.ContinueOnError)
	cfg.RegisterWorkerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	actx, err := audio.NewContext()
	if err != nil {
		worker.WriteEvent(os.Stdout, worker.Event{Type: worker.EventError, Payload: []byte(err.Error())})
		return 1
	}
	defer actx.Close()

	wcfg := worker.Config{
		SourceRate:    cfg.SourceRate,
		TargetRate:    cfg.TargetRate,
		Channels:      cfg.Channels,
		ChunkDuration: cfg.ChunkDuration,
	}
	if err := worker.Run(actx, wcfg, os.Stdin, os.Stdout); err != nil {
		return 1
	}
	return 0
}

func listDevices() int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, d := range devices {
		fmt.Println(d.Name)
	}
	return 0
}

func run(cfg config.Config, noWarm bool) error {
	bus := newEventBus()
	out := newConsole()

	streamer, err := provider.Select(cfg.Provider, bus)
	if err != nil {
		return err
	}

	history := session.NewStore()
	history.SetPersistent(cfg.Persistent)

	ctrl := pipeline.NewDefault(cfg, bus)
	defer ctrl.Shutdown()

	cue.Init()

	// Pre-warm: worker spawned and stream connected before the first
	// keypress. Failure is quiet; Start falls back to a cold path.
	if !noWarm {
		go func() {
			if err := ctrl.WarmUp(context.Background()); err != nil {
				log.Warnf("warm-up failed, will cold-start: %v", err)
			}
		}()
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	go readKeys(bus)

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)

	out.Help(streamer.Name(), history.Persistent())

	a := &appLoop{
		cfg:      cfg,
		bus:      bus,
		out:      out,
		streamer: streamer,
		history:  history,
		ctrl:     ctrl,
	}
	return a.run(sigCh)
}

func readKeys(bus *eventBus) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			bus.StdinClosed()
			return
		}
		if n == 1 {
			bus.Key(buf[0])
		}
	}
}

// appLoop is the single orchestration loop. All state transitions run
// here; goroutines only feed the bus.
type appLoop struct {
	cfg      config.Config
	bus      *eventBus
	out      *console
	streamer provider.Streamer
	history  *session.Store
	ctrl     *pipeline.Controller

	capturing     bool
	answering     bool
	answerStarted bool
	cancelAnswer  context.CancelFunc
}

func (a *appLoop) run(sigCh chan os.Signal) error {
	for {
		select {
		case <-sigCh:
			a.quit()
			return nil
		case ev := <-a.bus.ch:
			if done := a.handle(ev); done {
				a.quit()
				return nil
			}
		}
	}
}

func (a *appLoop) handle(ev appEvent) bool {
	switch ev.kind {
	case evKey:
		return a.handleKey(ev.key)
	case evStdinClosed:
		return true

	case evInterim:
		a.out.Interim(ev.text)
	case evFinal:
		a.out.Final(ev.text)
	case evSilence:
		if a.capturing {
			a.out.Status("Silence detected")
			a.finishCapture()
		}
	case evPipelineErr:
		cue.PlayError()
		a.capturing = false
		a.out.Error(ev.text)

	case evTextChunk:
		if !a.answerStarted {
			a.out.BeginAnswer(a.streamer.Name())
			a.answerStarted = true
		}
		a.out.Chunk(ev.text)
	case evResponseDone:
		if a.answerStarted {
			a.out.EndAnswer()
		}
		a.answerDone()
	case evStreamErr:
		if a.answerStarted {
			a.out.EndAnswer()
		}
		a.out.Error(ev.text)
		a.answerDone()
	case evNoSpeech:
		a.out.Status("No speech detected")
		a.answerDone()
	}
	return false
}

func (a *appLoop) handleKey(k byte) bool {
	switch k {
	case ' ':
		if a.capturing {
			a.finishCapture()
		} else {
			a.startCapture()
		}
	case 'p':
		a.history.SetPersistent(!a.history.Persistent())
		a.out.Help(a.streamer.Name(), a.history.Persistent())
	case 'c':
		a.history.Clear()
		a.out.Status("History cleared")
	case 'q', 3, 4: // q, Ctrl+C, Ctrl+D
		return true
	}
	return false
}

func (a *appLoop) startCapture() {
	if err := a.ctrl.Start(context.Background()); err != nil {
		cue.PlayError()
		a.out.Error(err.Error())
		return
	}
	a.capturing = true
	cue.PlayStart()
	a.out.Status("Listening...")
}

func (a *appLoop) finishCapture() {
	transcript, err := a.ctrl.Stop()
	a.capturing = false
	cue.PlayStop()
	if err != nil {
		a.out.Error(err.Error())
		return
	}
	a.submit(transcript)
}

// submit streams an AI response off the loop. Events come back on the
// bus; history is only touched after the full response succeeds.
func (a *appLoop) submit(transcript string) {
	if a.answering {
		return
	}
	a.answering = true
	a.answerStarted = false

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelAnswer = cancel
	turns := a.history.ContextTurns()

	go func() {
		start := time.Now()
		full, err := a.streamer.StreamResponse(ctx, transcript, turns, a.cfg.SystemPrompt)
		if err != nil {
			if errors.Is(err, provider.ErrNoSpeech) {
				a.bus.push(appEvent{kind: evNoSpeech})
			}
			// Other failures already produced a StreamError event.
			return
		}
		a.history.AddUser(transcript)
		a.history.AddAssistant(full)
		log.TranscriptText(transcript)
		log.ResponseText(full)
		log.ResponseStats(a.streamer.Name(), len(transcript), len(full), float64(time.Since(start).Milliseconds()))
	}()
}

func (a *appLoop) answerDone() {
	a.answering = false
	a.answerStarted = false
	if a.cancelAnswer != nil {
		a.cancelAnswer()
		a.cancelAnswer = nil
	}
}

func (a *appLoop) quit() {
	if a.cancelAnswer != nil {
		a.cancelAnswer()
	}
	a.out.Status("Shutting down")
	a.ctrl.Shutdown()
}
