package pipeline

import (
	"context"
	"sync"
	"time"

	"overhear/config"
	"overhear/transcriber"
	"overhear/worker"
)

// fakeWorker stands in for the capture subprocess. Tests drive its
// event channel directly.
type fakeWorker struct {
	mu      sync.Mutex
	signals []worker.Signal
	events  chan worker.Event
	stopped bool
}

func newFakeWorker() *fakeWorker {
	w := &fakeWorker{events: make(chan worker.Event, 16)}
	w.events <- worker.Event{Type: worker.EventReady}
	return w
}

func (w *fakeWorker) Signal(s worker.Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signals = append(w.signals, s)
	return nil
}

func (w *fakeWorker) Events() <-chan worker.Event { return w.events }

func (w *fakeWorker) Stop(timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.events)
	}
}

func (w *fakeWorker) crash(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if msg != "" {
		w.events <- worker.Event{Type: worker.EventError, Payload: []byte(msg)}
	}
	close(w.events)
}

func (w *fakeWorker) gotSignal(s worker.Signal) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, got := range w.signals {
		if got == s {
			return true
		}
	}
	return false
}

func (w *fakeWorker) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// fakeStream stands in for a live transcription session.
type fakeStream struct {
	mu         sync.Mutex
	events     chan transcriber.Event
	sent       int
	keepalives int
	dead       bool
	closed     bool
	resets     int
	transcript string
	lastFinal  time.Time
}

func newStream() *fakeStream {
	return &fakeStream{events: make(chan transcriber.Event, 16)}
}

func (s *fakeStream) Events() <-chan transcriber.Event { return s.events }

func (s *fakeStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

func (s *fakeStream) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepalives++
	return nil
}

func (s *fakeStream) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dead && !s.closed
}

func (s *fakeStream) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *fakeStream) LastFinalAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFinal
}

func (s *fakeStream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.transcript = ""
	s.lastFinal = time.Time{}
}

func (s *fakeStream) Stats() transcriber.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcriber.Stats{SentChunks: s.sent}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeStream) setTranscript(text string, lastFinal time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = text
	s.lastFinal = lastFinal
}

func (s *fakeStream) markDead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// plant hands out fake workers and streams and counts how many of each
// the controller asked for.
type plant struct {
	mu       sync.Mutex
	workers  []*fakeWorker
	streams  []*fakeStream
	dialErrs map[int]error // keyed by 1-based dial ordinal
}

func newPlant() *plant {
	return &plant{dialErrs: map[int]error{}}
}

func (p *plant) spawn(cfg config.Config) (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := newFakeWorker()
	p.workers = append(p.workers, w)
	return w, nil
}

func (p *plant) dial(ctx context.Context) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.streams) + 1
	if err := p.dialErrs[n]; err != nil {
		p.streams = append(p.streams, nil)
		return nil, err
	}
	s := newStream()
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *plant) spawnCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *plant) dialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

func (p *plant) worker(i int) *fakeWorker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[i]
}

func (p *plant) stream(i int) *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[i]
}

// chanSink records pipeline events on channels so tests can await them.
type chanSink struct {
	interims chan string
	finals   chan string
	silences chan string
	errs     chan string
}

func newChanSink() *chanSink {
	return &chanSink{
		interims: make(chan string, 16),
		finals:   make(chan string, 16),
		silences: make(chan string, 16),
		errs:     make(chan string, 16),
	}
}

func (s *chanSink) InterimTranscript(text string)    { s.interims <- text }
func (s *chanSink) FinalTranscript(text string)      { s.finals <- text }
func (s *chanSink) SilenceDetected(transcript string) { s.silences <- transcript }
func (s *chanSink) PipelineError(msg string)         { s.errs <- msg }
