// Package audio implements the capture-side audio pipeline for voicelink:
// resampling arbitrary-rate float samples to the canonical 16 kHz mono PCM16
// stream and framing that stream into fixed 20 ms chunks for transport.
//
// The pipeline never panics on malformed input: capture callbacks run on a
// real-time boundary and a bad buffer must degrade to silence, not crash the
// session.
package audio

// Canonical stream parameters. The remote analysis backend consumes
// little-endian PCM16 mono at 16 kHz in 20 ms frames.
const (
	// TargetRate is the canonical sample rate in Hz.
	TargetRate = 16000

	// FrameSamples is the number of samples in one 20 ms frame at TargetRate.
	FrameSamples = 320

	// FrameBytes is the byte length of one frame (FrameSamples × 2).
	FrameBytes = FrameSamples * 2

	// MinFrameBytes is the smallest frame the backend tolerates. Loopback
	// capture paths may emit short frames; anything below this is dropped.
	MinFrameBytes = 320
)

// Int16ToBytes converts int16 samples to little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16 converts little-endian PCM bytes to int16 samples. A trailing
// odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
