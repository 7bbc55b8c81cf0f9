package audio

// DataCallback receives interleaved float32 samples in [-1, 1] straight from
// the capture backend. frames is the per-channel frame count.
type DataCallback func(samples []float32, frames uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	// Devices lists loopback-capable sources (monitor sources on PulseAudio,
	// playback devices on WASAPI-style backends).
	Devices() ([]DeviceInfo, error)
	// NewLoopback opens a capture device on the default output's loopback.
	NewLoopback(config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
