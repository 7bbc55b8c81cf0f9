package worker

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"overhear/audio"
)

func testConfig() Config {
	return Config{
		SourceRate:    48000,
		TargetRate:    16000,
		Channels:      2,
		ChunkDuration: 100 * time.Millisecond,
	}
}

// runWorker starts Run against a fake device and returns a channel of
// decoded events plus the control writer and a done channel with Run's error.
func runWorker(t *testing.T, ctx audio.Context) (<-chan Event, io.WriteCloser, <-chan error) {
	t.Helper()

	controlR, controlW := io.Pipe()
	eventR, eventW := io.Pipe()

	events := make(chan Event, 256)
	go func() {
		defer close(events)
		for {
			ev, err := ReadEvent(eventR)
			if err != nil {
				return
			}
			events <- ev
		}
	}()

	done := make(chan error, 1)
	go func() {
		err := Run(ctx, testConfig(), controlR, eventW)
		eventW.Close()
		done <- err
	}()

	return events, controlW, done
}

func awaitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %q", want)
			}
			if ev.Type == want {
				return ev
			}
			if ev.Type == EventError {
				t.Fatalf("unexpected error event: %s", ev.Payload)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
}

func TestWorkerReadyThenAudioOnResume(t *testing.T) {
	samples := make([]float32, 48000*2)
	for i := range samples {
		samples[i] = 0.25
	}
	ctx := audio.NewFakeContext(samples, 2)

	events, control, done := runWorker(t, ctx)

	awaitEvent(t, events, EventReady)

	io.WriteString(control, "resume\n")
	audioEv := awaitEvent(t, events, EventAudio)

	// 100ms at 16kHz mono PCM16 = 3200 bytes.
	if len(audioEv.Payload) != 3200 {
		t.Errorf("audio chunk = %d bytes, want 3200", len(audioEv.Payload))
	}

	io.WriteString(control, "stop\n")
	if err := <-done; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}

func TestWorkerPausedEmitsNoAudio(t *testing.T) {
	ctx := audio.NewFakeContext(make([]float32, 48000*2), 2)
	events, control, done := runWorker(t, ctx)

	awaitEvent(t, events, EventReady)

	// Never resumed: only debug frames may appear.
	timeout := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break drain
			}
			if ev.Type == EventAudio {
				t.Fatal("audio event emitted while paused")
			}
		case <-timeout:
			break drain
		}
	}

	io.WriteString(control, "stop\n")
	<-done
}

func TestWorkerPauseStopsAudio(t *testing.T) {
	ctx := audio.NewFakeContext(make([]float32, 48000*4), 2)
	events, control, done := runWorker(t, ctx)

	awaitEvent(t, events, EventReady)
	io.WriteString(control, "resume\n")
	awaitEvent(t, events, EventAudio)

	io.WriteString(control, "pause\n")
	// Let in-flight chunks flush, then verify silence.
	time.Sleep(300 * time.Millisecond)
	for len(events) > 0 {
		<-events
	}
	select {
	case ev := <-events:
		if ev.Type == EventAudio {
			t.Error("audio event emitted after pause")
		}
	case <-time.After(300 * time.Millisecond):
	}

	io.WriteString(control, "stop\n")
	<-done
}

func TestWorkerDeviceOpenFailure(t *testing.T) {
	events, _, done := runWorker(t, audio.NewFailingContext())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("stream closed without an error event")
			}
			if ev.Type == EventError {
				if !strings.Contains(string(ev.Payload), "loopback") {
					t.Errorf("error payload %q should mention the device", ev.Payload)
				}
				if err := <-done; err == nil {
					t.Error("Run should return the device error")
				}
				return
			}
			if ev.Type == EventReady {
				t.Fatal("ready emitted despite device failure")
			}
		case <-deadline:
			t.Fatal("timed out waiting for error event")
		}
	}
}

func TestEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := []Event{
		{Type: EventReady},
		{Type: EventAudio, Payload: []byte{1, 2, 3, 4}},
		{Type: EventError, Payload: []byte("boom")},
		{Type: EventDebug, Payload: []byte("chunk 50: rms=0.120000")},
	}
	for _, ev := range in {
		if err := WriteEvent(&buf, ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	for i, want := range in {
		got, err := ReadEvent(&buf)
		if err != nil {
			t.Fatalf("ReadEvent %d: %v", i, err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("event %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := ReadEvent(&buf); err != io.EOF {
		t.Errorf("expected io.EOF at stream end, got %v", err)
	}
}

func TestParseSignal(t *testing.T) {
	for _, tt := range []struct {
		line string
		want Signal
		ok   bool
	}{
		{"resume", SignalResume, true},
		{"pause", SignalPause, true},
		{"stop", SignalStop, true},
		{"  stop \n", SignalStop, true},
		{"restart", "", false},
		{"", "", false},
	} {
		got, ok := ParseSignal(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSignal(%q) = %q,%v want %q,%v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}
