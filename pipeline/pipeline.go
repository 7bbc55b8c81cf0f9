// Package pipeline owns the capture worker process and the transcription
// stream, and sequences them through warm-up, capture, and shutdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"overhear/config"
	"overhear/log"
	"overhear/transcriber"
	"overhear/worker"
)

const (
	readyTimeout      = 5 * time.Second
	keepAliveInterval = 15 * time.Second
	workerStopTimeout = time.Second
)

type State int

const (
	StateCold State = iota
	StateWarmIdle
	StateCapturing
	StateDown
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarmIdle:
		return "warm-idle"
	case StateCapturing:
		return "capturing"
	case StateDown:
		return "down"
	}
	return "unknown"
}

// Events is what the pipeline reports upward. Implementations must not
// block; they are called from the pipeline's relay goroutines.
type Events interface {
	InterimTranscript(text string)
	FinalTranscript(text string)
	SilenceDetected(transcript string)
	PipelineError(msg string)
}

// Stream is the transcription session as the controller sees it.
// *transcriber.Session satisfies it; tests substitute a scripted one.
type Stream interface {
	Events() <-chan transcriber.Event
	Send(chunk []byte) error
	KeepAlive() error
	Alive() bool
	Transcript() string
	LastFinalAt() time.Time
	Reset()
	Stats() transcriber.Stats
	Close() error
}

// DialFunc opens a fresh transcription stream.
type DialFunc func(ctx context.Context) (Stream, error)

// DeepgramDialer builds the production DialFunc from runtime settings.
// The worker always delivers mono audio, whatever the device produces.
func DeepgramDialer(cfg config.Config) DialFunc {
	return func(ctx context.Context) (Stream, error) {
		d := transcriber.NewDeepgram(config.DeepgramKey(), transcriber.Config{
			SampleRate:     int(cfg.TargetRate),
			Channels:       1,
			Model:          cfg.Model,
			Language:       cfg.Language,
			Punctuate:      true,
			InterimResults: true,
			EndpointingMs:  cfg.EndpointingMs,
			SmartFormat:    true,
		})
		s, err := d.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Controller drives the capture state machine. All public methods are
// safe for concurrent use, though the expected caller is a single
// orchestration loop.
type Controller struct {
	cfg   config.Config
	spawn SpawnFunc
	dial  DialFunc
	sink  Events

	mu       sync.Mutex
	state    State
	wk       Worker
	stream   Stream
	keepStop chan struct{}
	silStop  chan struct{}
	closing  bool

	fatalOnce sync.Once
}

func New(cfg config.Config, spawn SpawnFunc, dial DialFunc, sink Events) *Controller {
	return &Controller{
		cfg:   cfg,
		spawn: spawn,
		dial:  dial,
		sink:  sink,
		state: StateCold,
	}
}

// NewDefault wires the production spawn and dial functions.
func NewDefault(cfg config.Config, sink Events) *Controller {
	return New(cfg, SpawnProcess, DeepgramDialer(cfg), sink)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WarmUp spawns the capture worker and opens the transcription stream
// ahead of the first capture, so Start has nothing left to wait on.
// Failure leaves the controller cold; Start then takes the cold path.
func (c *Controller) WarmUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCold {
		return fmt.Errorf("warm-up requested in state %s", c.state)
	}
	if err := c.spinUpLocked(ctx); err != nil {
		return err
	}
	c.startKeepAliveLocked()
	c.state = StateWarmIdle
	log.Info("pipeline warm: worker ready, stream connected")
	return nil
}

// spinUpLocked brings up a worker and a stream together, or neither.
func (c *Controller) spinUpLocked(ctx context.Context) error {
	wk, err := c.spawn(c.cfg)
	if err != nil {
		return fmt.Errorf("spawn capture worker: %w", err)
	}
	if err := awaitReady(wk, readyTimeout); err != nil {
		wk.Stop(workerStopTimeout)
		return err
	}
	st, err := c.dial(ctx)
	if err != nil {
		wk.Stop(workerStopTimeout)
		return fmt.Errorf("transcription connect: %w", err)
	}

	c.wk = wk
	c.stream = st
	go c.relayWorker(wk)
	go c.relayStream(st)
	return nil
}

func awaitReady(wk Worker, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-wk.Events():
			if !ok {
				return errors.New("capture worker exited during startup")
			}
			switch ev.Type {
			case worker.EventReady:
				return nil
			case worker.EventError:
				return fmt.Errorf("capture worker: %s", ev.Payload)
			case worker.EventDebug:
				log.WorkerLine(string(ev.Payload))
			}
		case <-timer.C:
			return errors.New("timed out waiting for capture worker")
		}
	}
}

// Start begins a capture session. From warm-idle it reuses the live
// stream when possible and reconnects when not; if the reconnect fails
// it rebuilds everything from cold. From cold it spins up worker and
// stream first. Calling Start while already capturing is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateCapturing:
		return nil
	case StateWarmIdle:
		c.stopKeepAliveLocked()
		if err := c.ensureStreamLocked(ctx); err != nil {
			log.Warnf("stream repair failed, falling back to cold start: %v", err)
			c.teardownLocked()
			c.state = StateCold
			if err := c.spinUpLocked(ctx); err != nil {
				return err
			}
		}
	case StateCold:
		if err := c.spinUpLocked(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("start requested in state %s", c.state)
	}

	c.stream.Reset()
	if err := c.wk.Signal(worker.SignalResume); err != nil {
		return fmt.Errorf("resume capture worker: %w", err)
	}
	c.startSilenceLocked()
	c.state = StateCapturing
	return nil
}

// ensureStreamLocked reuses the live stream or replaces a dead one. The
// old stream's duties are shut down before the new dial so they cannot
// race on the event sink.
func (c *Controller) ensureStreamLocked(ctx context.Context) error {
	if c.stream != nil && c.stream.Alive() {
		return nil
	}
	if c.stream != nil {
		log.Warn("transcription stream went stale, reconnecting")
		c.stream.Close()
		c.stream = nil
	}
	st, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.stream = st
	go c.relayStream(st)
	return nil
}

// Stop ends the capture session, parks the pipeline warm, and returns
// the accumulated transcript.
func (c *Controller) Stop() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCapturing {
		return "", fmt.Errorf("stop requested in state %s", c.state)
	}
	if err := c.wk.Signal(worker.SignalPause); err != nil {
		log.Errorf("pause capture worker: %v", err)
	}
	c.stopSilenceLocked()
	c.startKeepAliveLocked()
	c.state = StateWarmIdle

	transcript := c.stream.Transcript()
	st := c.stream.Stats()
	log.CaptureStats(st.SentChunks, float64(st.SentBytes)/1024, st.RecvFinal, st.RecvInterim, len(transcript))
	return transcript, nil
}

// Shutdown tears the whole pipeline down. Safe to call repeatedly and
// from any state.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDown {
		return
	}
	c.closing = true
	c.teardownLocked()
	c.state = StateDown
	log.Info("pipeline shut down")
}

// teardownLocked stops every background duty and both halves of the
// pipeline. Nulling c.wk first tells relayWorker the exit is expected.
func (c *Controller) teardownLocked() {
	c.stopSilenceLocked()
	c.stopKeepAliveLocked()
	if wk := c.wk; wk != nil {
		c.wk = nil
		wk.Stop(workerStopTimeout)
	}
	if st := c.stream; st != nil {
		c.stream = nil
		st.Close()
	}
}

// relayWorker forwards worker events for the life of one subprocess.
// The events channel closing means the process exited; if that was not
// part of a teardown it is a crash.
func (c *Controller) relayWorker(wk Worker) {
	for ev := range wk.Events() {
		switch ev.Type {
		case worker.EventAudio:
			c.forwardAudio(ev.Payload)
		case worker.EventError:
			c.fatal(fmt.Sprintf("capture worker: %s", ev.Payload))
		case worker.EventDebug:
			log.WorkerLine(string(ev.Payload))
		}
	}

	c.mu.Lock()
	crashed := c.wk == wk && !c.closing
	c.mu.Unlock()
	if crashed {
		c.fatal("capture worker exited unexpectedly")
	}
}

func (c *Controller) forwardAudio(chunk []byte) {
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st == nil {
		return
	}
	// Send failures surface through the stream's own error event.
	st.Send(chunk)
}

// relayStream forwards transcription events for the life of one stream.
func (c *Controller) relayStream(st Stream) {
	for ev := range st.Events() {
		switch ev.Kind {
		case transcriber.EventInterim:
			c.sink.InterimTranscript(ev.Text)
		case transcriber.EventFinal:
			c.sink.FinalTranscript(ev.Text)
		case transcriber.EventErr:
			c.sink.PipelineError(ev.Text)
		}
	}
}

// fatal reports one pipeline-fatal error and shuts everything down.
func (c *Controller) fatal(msg string) {
	c.fatalOnce.Do(func() {
		log.Error(msg)
		c.sink.PipelineError(msg)
		go c.Shutdown()
	})
}

func (c *Controller) startKeepAliveLocked() {
	if c.keepStop != nil || c.stream == nil {
		return
	}
	stop := make(chan struct{})
	c.keepStop = stop
	st := c.stream
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := st.KeepAlive(); err != nil {
					return
				}
			}
		}
	}()
}

func (c *Controller) stopKeepAliveLocked() {
	if c.keepStop != nil {
		close(c.keepStop)
		c.keepStop = nil
	}
}

func (c *Controller) startSilenceLocked() {
	if c.silStop != nil {
		return
	}
	stop := make(chan struct{})
	c.silStop = stop
	st := c.stream
	watch := newSilenceWatch(c.cfg.SilenceThreshold, c.cfg.QuestionThreshold)
	go func() {
		ticker := time.NewTicker(silenceCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if watch.Check(st.Transcript(), st.LastFinalAt(), time.Now()) {
					c.sink.SilenceDetected(st.Transcript())
					return
				}
			}
		}
	}()
}

func (c *Controller) stopSilenceLocked() {
	if c.silStop != nil {
		close(c.silStop)
		c.silStop = nil
	}
}
