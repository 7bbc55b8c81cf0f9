// Package cue plays short feedback tones for capture start, capture
// stop, and errors. Playback failures are silent; a cue is never worth
// an error message.
package cue

import (
	"math"
	"sync"
)

var (
	disabled bool
	initOnce sync.Once

	startSamples []int16
	stopSamples  []int16
	errorSamples []int16
)

const (
	sampleRate = 44100

	startFreq = 1047 // C6, capture opened
	stopFreq  = 784  // G5, capture closed
	errorFreq = 330
)

func Disable() { disabled = true }

func Init() {
	if disabled {
		return
	}
	initOnce.Do(func() {
		startSamples = tone(startFreq, 0.12, 0.4, 45)
		stopSamples = tone(stopFreq, 0.15, 0.4, 35)
		errorSamples = doubleTone(errorFreq, 0.09, 0.06, 0.5, 25)
		initBackend()
	})
}

func PlayStart() { play(startSamples) }
func PlayStop()  { play(stopSamples) }
func PlayError() { play(errorSamples) }

func play(samples []int16) {
	if disabled || len(samples) == 0 {
		return
	}
	go playSamples(samples)
}

// tone renders a mono sine burst with an exponential decay envelope.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(freq, burstDur, gapDur, volume, decay float64) []int16 {
	burst := tone(freq, burstDur, volume, decay)
	out := make([]int16, 0, len(burst)*2+int(sampleRate*gapDur))
	out = append(out, burst...)
	out = append(out, make([]int16, int(sampleRate*gapDur))...)
	out = append(out, burst...)
	return out
}
