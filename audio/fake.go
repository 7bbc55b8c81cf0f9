package audio

import (
	"sync"
	"time"
)

// FakeContext drives the capture pipeline from an in-memory sample buffer.
// Used by worker and pipeline tests instead of a real device.
type FakeContext struct {
	samples  []float32
	channels uint32
	failOpen bool
}

func NewFakeContext(samples []float32, channels uint32) *FakeContext {
	return &FakeContext{samples: samples, channels: channels}
}

// NewFailingContext returns a context whose NewLoopback always fails,
// simulating a machine with no loopback-capable device.
func NewFailingContext() *FakeContext {
	return &FakeContext{failOpen: true}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.failOpen {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake loopback"}}, nil
}

func (f *FakeContext) NewLoopback(config CaptureConfig) (CaptureDevice, error) {
	if f.failOpen {
		return nil, errNoDevice
	}
	return &FakeCapture{
		samples:  f.samples,
		channels: f.channels,
	}, nil
}

func (f *FakeContext) Close() {}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errNoDevice = fakeError("no loopback device")

type FakeCapture struct {
	samples  []float32
	channels uint32

	mu     sync.Mutex
	cb     DataCallback
	stopCh chan struct{}
	done   chan struct{}
}

const fakeFrameSize = 1024

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake loopback" }

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})

	chunk := fakeFrameSize * int(f.channels)

	go func() {
		defer close(f.done)
		pos := 0
		silence := make([]float32, chunk)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(time.Millisecond):
			}

			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb == nil {
				continue
			}

			if pos < len(f.samples) {
				end := min(pos+chunk, len(f.samples))
				buf := make([]float32, end-pos)
				copy(buf, f.samples[pos:end])
				pos = end
				cb(buf, uint32(len(buf)/int(f.channels)))
			} else {
				cb(silence, fakeFrameSize)
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.done
}

func (f *FakeCapture) Close() {}
