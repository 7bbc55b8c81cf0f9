package transcriber

import "sync"

// fakeStream is a scripted streamConn for tests. Updates pushed via Push
// come out of Recv in order; Close unblocks a pending Recv.
type fakeStream struct {
	updates chan Update

	mu        sync.Mutex
	sent      [][]byte
	keepAlive int
	sendErr   error
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		updates: make(chan Update, 64),
		closeCh: make(chan struct{}),
	}
}

// NewFakeSession returns a Session driven by an in-memory wire, plus the
// push function feeding its receiver duty. For tests in other packages.
func NewFakeSession() (*Session, func(Update)) {
	ws := newFakeStream()
	return newSession(ws), ws.Push
}

func (f *fakeStream) Push(u Update) {
	f.updates <- u
}

func (f *fakeStream) Send(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeStream) KeepAlive() error {
	f.mu.Lock()
	f.keepAlive++
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) Recv() (Update, error) {
	select {
	case u := <-f.updates:
		return u, nil
	case <-f.closeCh:
		return Update{}, errSessionClosed
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.closeCh)
	})
	return nil
}
