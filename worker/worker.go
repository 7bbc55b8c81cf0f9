package worker

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"overhear/audio"
)

// Config is fixed at worker startup and never mutated afterwards.
type Config struct {
	SourceRate    uint32
	TargetRate    uint32
	Channels      uint32
	ChunkDuration time.Duration
}

func (c Config) sourceFrames() int {
	return int(time.Duration(c.SourceRate) * c.ChunkDuration / time.Second)
}

func (c Config) targetFrames() int {
	return int(time.Duration(c.TargetRate) * c.ChunkDuration / time.Second)
}

// debugEvery is the chunk interval for RMS diagnostics.
const debugEvery = 50

// Run is the worker process body: open the default output's loopback,
// announce readiness, then capture until a stop signal arrives. All
// failures surface as exactly one error event before returning.
//
// Reading continues even while paused so the device stream stays live and
// resume is instant.
func Run(ctx audio.Context, cfg Config, control io.Reader, events io.Writer) error {
	out := bufio.NewWriter(events)
	emit := func(ev Event) error {
		if err := WriteEvent(out, ev); err != nil {
			return err
		}
		return out.Flush()
	}
	fail := func(err error) error {
		emit(Event{Type: EventError, Payload: []byte(err.Error())})
		return err
	}

	emit(Event{Type: EventDebug, Payload: []byte("worker process started")})

	dev, err := ctx.NewLoopback(audio.CaptureConfig{
		SampleRate: cfg.SourceRate,
		Channels:   cfg.Channels,
	})
	if err != nil {
		return fail(fmt.Errorf("open loopback device: %w", err))
	}
	defer dev.Close()

	emit(Event{Type: EventDebug, Payload: []byte("loopback device: " + dev.DeviceName())})

	// The device pushes sample buffers; the loop below pulls fixed-duration
	// chunks. A buffered channel bridges the two, dropping on overflow so a
	// stalled loop can never block the platform audio thread.
	sampleCh := make(chan []float32, 64)
	dev.SetCallback(func(samples []float32, _ uint32) {
		select {
		case sampleCh <- samples:
		default:
		}
	})
	defer dev.ClearCallback()

	if err := dev.Start(); err != nil {
		return fail(fmt.Errorf("start capture: %w", err))
	}
	defer dev.Stop()

	if err := emit(Event{Type: EventReady}); err != nil {
		return err
	}

	signals := make(chan Signal, 8)
	go ReadSignals(control, signals)

	chunkSamples := cfg.sourceFrames() * int(cfg.Channels)
	targetFrames := cfg.targetFrames()

	var (
		buf       []float32
		capturing bool
		chunks    int
	)

	for {
		// At most one pending control signal per iteration.
		select {
		case sig, ok := <-signals:
			if !ok {
				// Controller hung up; treat as stop.
				emit(Event{Type: EventDebug, Payload: []byte("control stream closed, exiting")})
				return nil
			}
			switch sig {
			case SignalStop:
				emit(Event{Type: EventDebug, Payload: []byte("stop signal received, exiting")})
				return nil
			case SignalResume:
				capturing = true
				chunks = 0
				emit(Event{Type: EventDebug, Payload: []byte("capture resumed")})
			case SignalPause:
				capturing = false
				emit(Event{Type: EventDebug, Payload: []byte("capture paused")})
			}
		default:
		}

		// Read one fixed-duration frame regardless of pause state.
		for len(buf) < chunkSamples {
			samples, ok := <-sampleCh
			if !ok {
				return nil
			}
			buf = append(buf, samples...)
		}
		chunk := buf[:chunkSamples]
		buf = append(buf[:0:0], buf[chunkSamples:]...)

		if !capturing {
			continue
		}

		mono := audio.Downmix(chunk, int(cfg.Channels))
		resampled := audio.Resample(mono, targetFrames)
		pcm := audio.ToPCM16(resampled)

		chunks++
		if chunks == 1 || chunks%debugEvery == 0 {
			msg := fmt.Sprintf("chunk %d: rms=%.6f", chunks, rms(mono))
			emit(Event{Type: EventDebug, Payload: []byte(msg)})
		}

		if err := emit(Event{Type: EventAudio, Payload: pcm}); err != nil {
			return err
		}
	}
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
