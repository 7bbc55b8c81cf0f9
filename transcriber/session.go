package transcriber

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// streamConn is the raw duplex connection under a Session. Factored out so
// tests can drive the session without a live socket.
type streamConn interface {
	Send(pcm []byte) error
	KeepAlive() error
	Recv() (Update, error)
	Close() error
}

// Update is one inbound recognition result.
type Update struct {
	Transcript string
	IsFinal    bool
}

type EventKind int

const (
	EventInterim EventKind = iota // provisional text, not persisted
	EventFinal                    // accumulated transcript grew
	EventErr                      // stream failed; text is the message
)

type Event struct {
	Kind EventKind
	Text string
}

// Stats counts session traffic for diagnostics logging.
type Stats struct {
	SentChunks  int
	SentBytes   uint64
	RecvFinal   int
	RecvInterim int
}

// Session owns the connection exclusively: the sender duty drains the
// outbound audio queue, the receiver duty reconciles results into the
// accumulated transcript. Both end quietly on closure; any other failure
// surfaces as exactly one EventErr.
type Session struct {
	ws      streamConn
	audioCh chan []byte
	events  chan Event
	done    chan struct{}
	group   *errgroup.Group

	mu          sync.Mutex
	accumulated string
	lastFinalAt time.Time
	closing     bool
	failed      bool
	stats       Stats

	closeOnce sync.Once
	errOnce   sync.Once
}

func newSession(ws streamConn) *Session {
	s := &Session{
		ws:      ws,
		audioCh: make(chan []byte, 128),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	s.group = &errgroup.Group{}
	s.group.Go(s.runSender)
	s.group.Go(s.runReceiver)
	return s
}

// Events delivers interim, final, and error events in arrival order. The
// channel closes after Close once both duties have drained.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Send queues one audio chunk for the sender duty. Chunks are never
// reordered or dropped; under backpressure Send blocks until the queue
// has room or the session ends.
func (s *Session) Send(chunk []byte) error {
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

type sessionError string

func (e sessionError) Error() string { return string(e) }

const errSessionClosed = sessionError("transcription session is closed")

// KeepAlive writes an empty frame to hold the idle connection open.
func (s *Session) KeepAlive() error {
	return s.ws.KeepAlive()
}

// Alive reports whether the connection can be reused for another capture
// session: it has not failed and has not been closed.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.failed && !s.closing
}

// Transcript returns the trimmed accumulated transcript. Non-destructive.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.accumulated)
}

// LastFinalAt is the arrival time of the most recent final fragment.
func (s *Session) LastFinalAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFinalAt
}

// Reset clears the transcript at the start of a new capture session.
func (s *Session) Reset() {
	s.mu.Lock()
	s.accumulated = ""
	s.lastFinalAt = time.Time{}
	s.mu.Unlock()
}

// Stats returns a snapshot of the session's traffic counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close tears the session down and waits for both duties to finish before
// the caller may discard the socket, so no duty can race a closed
// connection. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		close(s.done)
		s.ws.Close()
		s.group.Wait()
		close(s.events)
	})
	return nil
}

func (s *Session) runSender() error {
	for {
		select {
		case chunk := <-s.audioCh:
			if err := s.ws.Send(chunk); err != nil {
				s.reportErr("send audio: " + err.Error())
				return nil
			}
			s.mu.Lock()
			s.stats.SentChunks++
			s.stats.SentBytes += uint64(len(chunk))
			s.mu.Unlock()
		case <-s.done:
			return nil
		}
	}
}

func (s *Session) runReceiver() error {
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.reportErr("receive transcript: " + err.Error())
			return nil
		}
		update.Transcript = strings.TrimSpace(update.Transcript)
		if update.Transcript == "" {
			continue
		}

		if update.IsFinal {
			// Commit before emitting, so a handler that calls Transcript()
			// from inside the event sees the new text.
			s.mu.Lock()
			if s.accumulated == "" {
				s.accumulated = update.Transcript
			} else {
				s.accumulated += " " + update.Transcript
			}
			s.lastFinalAt = time.Now()
			full := strings.TrimSpace(s.accumulated)
			s.stats.RecvFinal++
			s.mu.Unlock()

			s.emit(Event{Kind: EventFinal, Text: full})
		} else {
			s.mu.Lock()
			combined := strings.TrimSpace(s.accumulated + " " + update.Transcript)
			s.stats.RecvInterim++
			s.mu.Unlock()

			s.emit(Event{Kind: EventInterim, Text: combined})
		}
	}
}

// reportErr marks the session failed and emits one error event, unless
// the failure is the expected result of Close.
func (s *Session) reportErr(msg string) {
	s.mu.Lock()
	closing := s.closing
	if !closing {
		s.failed = true
	}
	s.mu.Unlock()
	if closing {
		return
	}
	s.errOnce.Do(func() {
		s.emit(Event{Kind: EventErr, Text: msg})
	})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
