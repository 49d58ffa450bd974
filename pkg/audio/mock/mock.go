// Package mock provides an in-memory implementation of [audio.Stream] for
// use in unit tests.
//
// The mock is safe for concurrent use. Tests feed sample buffers through
// [Stream.Emit] and close the stream with [Stream.Close]; call counts are
// recorded for assertions.
package mock

import (
	"sync"

	"github.com/atluriin/voicelink/pkg/audio"
)

// Stream is a scripted implementation of [audio.Stream].
type Stream struct {
	// Rate is returned by [Stream.SampleRate]. Defaults to 48000 if zero.
	Rate int

	// CloseError is returned by the first [Stream.Close] call.
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	mu     sync.Mutex
	once   sync.Once
	frames chan []float32
}

// New creates a mock stream with the given channel capacity.
func New(rate, bufCap int) *Stream {
	return &Stream{
		Rate:   rate,
		frames: make(chan []float32, bufCap),
	}
}

// Emit queues one sample buffer for delivery. It blocks if the channel is
// full, so size the buffer capacity to the test's needs.
func (s *Stream) Emit(samples []float32) {
	s.frames <- samples
}

// Frames implements [audio.Stream].
func (s *Stream) Frames() <-chan []float32 {
	return s.frames
}

// SampleRate implements [audio.Stream].
func (s *Stream) SampleRate() int {
	if s.Rate == 0 {
		return 48000
	}
	return s.Rate
}

// Close implements [audio.Stream]. The frames channel is closed exactly once;
// repeated calls are recorded but otherwise no-ops.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	err := s.CloseError
	s.mu.Unlock()

	s.once.Do(func() { close(s.frames) })
	return err
}

var _ audio.Stream = (*Stream)(nil)
