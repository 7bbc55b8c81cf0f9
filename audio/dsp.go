package audio

import "encoding/binary"

// Downmix averages interleaved multi-channel samples into mono.
// The input length must be a multiple of channels; trailing partial
// frames are dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts a mono chunk to exactly targetFrames samples using
// linear interpolation. When the counts already match the input is
// returned unchanged.
func Resample(in []float32, targetFrames int) []float32 {
	if len(in) == targetFrames {
		return in
	}
	if targetFrames <= 0 {
		return nil
	}
	out := make([]float32, targetFrames)
	if len(in) == 0 {
		return out
	}
	if len(in) == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return out
	}
	if targetFrames == 1 {
		out[0] = in[0]
		return out
	}
	step := float64(len(in)-1) / float64(targetFrames-1)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx] + (in[idx+1]-in[idx])*frac
	}
	return out
}

// ToPCM16 converts float samples to little-endian 16-bit PCM. Out-of-range
// samples are clipped, never wrapped.
func ToPCM16(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

// FromPCM16 is the inverse of ToPCM16, used for level metering and tests.
func FromPCM16(in []byte) []float32 {
	out := make([]float32, len(in)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(in[i*2:]))) / 32767
	}
	return out
}
