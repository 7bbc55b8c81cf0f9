// Package worker implements the isolated audio capture process and the
// pipe protocol it speaks with the lifecycle controller. The worker is a
// re-exec of the main binary so a misbehaving audio backend can only take
// down the child, never the orchestrator.
package worker

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// EventType tags a consumer-ward frame on the worker's stdout.
type EventType byte

const (
	EventReady EventType = 'R' // device open, sent exactly once
	EventAudio EventType = 'A' // payload is one PCM16LE mono chunk
	EventError EventType = 'E' // payload is a human-readable message
	EventDebug EventType = 'D' // payload is a diagnostics line
)

type Event struct {
	Type    EventType
	Payload []byte
}

// maxFrameSize bounds a single frame so a corrupted length prefix cannot
// make the reader allocate unbounded memory.
const maxFrameSize = 1 << 20

// WriteEvent encodes one frame: type byte, uint32 little-endian payload
// length, payload bytes.
func WriteEvent(w io.Writer, ev Event) error {
	var hdr [5]byte
	hdr[0] = byte(ev.Type)
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(ev.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(ev.Payload) > 0 {
		if _, err := w.Write(ev.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvent decodes one frame written by WriteEvent. It returns io.EOF
// unwrapped when the stream ends cleanly between frames.
func ReadEvent(r io.Reader) (Event, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:1]); err != nil {
		return Event{}, err
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return Event{}, fmt.Errorf("short frame header: %w", err)
	}
	size := binary.LittleEndian.Uint32(hdr[1:])
	if size > maxFrameSize {
		return Event{}, fmt.Errorf("frame size %d exceeds limit", size)
	}
	ev := Event{Type: EventType(hdr[0])}
	if size > 0 {
		ev.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, ev.Payload); err != nil {
			return Event{}, fmt.Errorf("short frame payload: %w", err)
		}
	}
	return ev, nil
}

// Signal is a worker-ward control message, one per line on stdin.
type Signal string

const (
	SignalResume Signal = "resume"
	SignalPause  Signal = "pause"
	SignalStop   Signal = "stop"
)

// ParseSignal validates a control line. Unknown lines are ignored by the
// worker rather than treated as fatal.
func ParseSignal(line string) (Signal, bool) {
	switch Signal(strings.TrimSpace(line)) {
	case SignalResume:
		return SignalResume, true
	case SignalPause:
		return SignalPause, true
	case SignalStop:
		return SignalStop, true
	}
	return "", false
}

// ReadSignals feeds parsed control signals into out until the reader ends,
// then closes out. Runs on its own goroutine inside the worker.
func ReadSignals(r io.Reader, out chan<- Signal) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if sig, ok := ParseSignal(scanner.Text()); ok {
			out <- sig
		}
	}
}
