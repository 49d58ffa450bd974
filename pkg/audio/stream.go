package audio

// Stream is a live source of mono float32 sample buffers. Implementations
// are provided by the platform adapter packages (capture for real devices,
// mock for tests).
//
// Buffers received from Frames are owned by the receiver; the producer never
// retains or mutates them after delivery. The channel is closed when the
// stream ends or Close is called.
type Stream interface {
	// Frames returns the delivery channel of captured sample buffers.
	Frames() <-chan []float32

	// SampleRate reports the native sample rate of the stream in Hz.
	SampleRate() int

	// Close releases the underlying device and closes the frames channel.
	// Safe to call multiple times.
	Close() error
}
