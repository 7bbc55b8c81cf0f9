//go:build !linux

package cue

import (
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// Playback cursor, touched from the device callback.
	current atomic.Pointer[[]int16]
	pos     atomic.Uint32
)

func initBackend() {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	malgoCtx = ctx

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	device, err = malgo.InitDevice(malgoCtx.Context, cfg, malgo.DeviceCallbacks{Data: feed})
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		return
	}
	device.Start()
}

func feed(out, _ []byte, frames uint32) {
	for i := range out {
		out[i] = 0
	}
	samples := current.Load()
	if samples == nil {
		return
	}
	p := pos.Load()
	total := uint32(len(*samples))
	if p >= total {
		current.Store(nil)
		return
	}
	n := frames
	if p+n > total {
		n = total - p
	}
	for i := uint32(0); i < n; i++ {
		s := (*samples)[p+i]
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	pos.Store(p + n)
}

func playSamples(samples []int16) {
	if device == nil {
		return
	}
	pos.Store(0)
	current.Store(&samples)
}
