package audio

// Framer buffers a rolling int16 sample stream and cuts it into fixed
// [FrameBytes]-sized little-endian PCM frames. Capture callbacks deliver
// irregular buffer sizes; the framer guarantees a stable 20 ms cadence by
// carrying leftover samples across pushes.
//
// Create one per stream; not designed for shared use across goroutines.
type Framer struct {
	pending []int16
}

// Push appends samples to the accumulator and returns every complete frame
// now available, oldest first. Partial remainders below [FrameSamples] stay
// buffered for the next push; undersized frames are never emitted.
func (f *Framer) Push(samples []int16) [][]byte {
	if len(samples) > 0 {
		f.pending = append(f.pending, samples...)
	}

	var frames [][]byte
	for len(f.pending) >= FrameSamples {
		frames = append(frames, Int16ToBytes(f.pending[:FrameSamples]))
		f.pending = f.pending[FrameSamples:]
	}

	// Re-anchor the remainder so the backing array cannot grow without bound.
	if len(frames) > 0 {
		rest := make([]int16, len(f.pending))
		copy(rest, f.pending)
		f.pending = rest
	}
	return frames
}

// Pending reports how many samples are buffered awaiting a complete frame.
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Reset discards any buffered partial frame.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
