// Package capture acquires raw audio streams from the operating system for
// voicelink. Three source kinds are supported: the default (or named)
// microphone, a system-audio capture device, and OS-level loopback capture of
// the output mix. All variants deliver mono float32 sample buffers through a
// channel; the malgo (miniaudio) backend handles the platform specifics.
//
// Capture callbacks run on a real-time audio thread. The adapter copies each
// buffer and hands it to the session loop via message passing only; shared
// mutable state never crosses that boundary, and a slow consumer causes
// frames to be dropped rather than the device callback to block.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// Kind selects which audio source to open.
type Kind string

const (
	// Microphone captures from the default or configured input device.
	Microphone Kind = "microphone"

	// SystemAudio captures from a capture device carrying the system mix
	// (a virtual device or a shared output the user selected).
	SystemAudio Kind = "system"

	// Loopback captures the OS output mix directly (WASAPI loopback on
	// Windows and equivalent backends elsewhere).
	Loopback Kind = "loopback"
)

// IsValid reports whether k is a recognised source kind.
func (k Kind) IsValid() bool {
	return k == Microphone || k == SystemAudio || k == Loopback
}

// Capture error taxonomy. Callers should match with [errors.Is] and surface
// these as non-fatal, retryable statuses.
var (
	// ErrPermissionDenied indicates the OS rejected access to the device.
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrDeviceUnavailable indicates no matching device exists or the
	// device could not be opened.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")

	// ErrCapabilityMissing indicates the requested capture mode is not
	// supported on this platform (e.g. loopback without a WASAPI backend).
	ErrCapabilityMissing = errors.New("capture: capability missing")
)

// Config tunes how a source is opened.
type Config struct {
	// DeviceName is matched case-insensitively against device names when
	// Kind is Microphone or SystemAudio. Empty selects the default device.
	DeviceName string

	// BufferCap is the capacity of the delivery channel. Defaults to 64.
	BufferCap int
}

// Source is a live audio stream. Obtain one via [Open]; release it with
// [Source.Close].
type Source struct {
	kind       Kind
	sampleRate int
	frames     chan []float32

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	closeOnce sync.Once
	dropped   uint64
	mu        sync.Mutex
}

// Open acquires a live audio stream of the given kind. The returned source
// delivers mono float32 buffers at [Source.SampleRate] until closed. Opening
// a device may trigger an OS permission prompt on first use.
//
// Failures map onto the package error taxonomy: a missing loopback backend
// yields [ErrCapabilityMissing], an unknown or unopenable device yields
// [ErrDeviceUnavailable], and an OS access rejection yields
// [ErrPermissionDenied].
func Open(ctx context.Context, kind Kind, cfg Config) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("capture: unknown source kind %q", kind)
	}
	bufCap := cfg.BufferCap
	if bufCap <= 0 {
		bufCap = 64
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init backend: %v", ErrDeviceUnavailable, err)
	}

	src := &Source{
		kind:   kind,
		frames: make(chan []float32, bufCap),
		ctx:    mctx,
	}

	deviceConfig, err := src.deviceConfig(kind, cfg)
	if err != nil {
		teardownContext(mctx)
		return nil, err
	}

	onRecv := func(_, data []byte, frameCount uint32) {
		if frameCount == 0 {
			return
		}
		buf := decodeF32(data, int(frameCount))
		select {
		case src.frames <- buf:
		default:
			// Never block the audio thread; drop and count.
			src.mu.Lock()
			src.dropped++
			src.mu.Unlock()
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		teardownContext(mctx)
		return nil, classifyInitError(kind, err)
	}
	src.device = device
	src.sampleRate = int(deviceConfig.SampleRate)

	if err := device.Start(); err != nil {
		device.Uninit()
		teardownContext(mctx)
		return nil, fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, kind, err)
	}

	slog.Info("audio capture started",
		"kind", kind,
		"sample_rate", src.sampleRate,
		"device", cfg.DeviceName,
	)
	return src, nil
}

// deviceConfig builds the malgo device configuration for the source kind.
func (s *Source) deviceConfig(kind Kind, cfg Config) (malgo.DeviceConfig, error) {
	deviceType := malgo.Capture
	if kind == Loopback {
		deviceType = malgo.Loopback
	}

	dc := malgo.DefaultDeviceConfig(deviceType)
	dc.Capture.Format = malgo.FormatF32
	dc.Capture.Channels = 1
	dc.SampleRate = 48000
	dc.Alsa.NoMMap = 1

	if cfg.DeviceName != "" && kind != Loopback {
		id, err := s.findDevice(cfg.DeviceName)
		if err != nil {
			return dc, err
		}
		dc.Capture.DeviceID = id.Pointer()
	}
	return dc, nil
}

// findDevice resolves a case-insensitive substring match against the
// enumerated capture devices.
func (s *Source) findDevice(name string) (malgo.DeviceID, error) {
	infos, err := s.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("%w: enumerate: %v", ErrDeviceUnavailable, err)
	}
	needle := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("%w: no capture device matching %q", ErrDeviceUnavailable, name)
}

// Frames returns the channel of captured sample buffers. The channel is
// closed by [Source.Close]. Buffers are owned by the receiver.
func (s *Source) Frames() <-chan []float32 {
	return s.frames
}

// SampleRate reports the native sample rate of the opened device in Hz.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Kind reports which source kind this stream was opened as.
func (s *Source) Kind() Kind {
	return s.kind
}

// Dropped reports how many buffers were discarded because the consumer fell
// behind.
func (s *Source) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the device, releases the backend, and closes the frames
// channel. Safe to call multiple times.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.device != nil {
			s.device.Uninit()
		}
		if s.ctx != nil {
			teardownContext(s.ctx)
		}
		close(s.frames)
		slog.Debug("audio capture stopped", "kind", s.kind, "dropped", s.Dropped())
	})
	return nil
}

// decodeF32 converts a raw little-endian float32 buffer from the device
// callback into an owned sample slice.
func decodeF32(data []byte, frames int) []float32 {
	n := frames
	if max := len(data) / 4; n > max {
		n = max
	}
	out := make([]float32, n)
	for i := range out {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// classifyInitError maps a malgo device-init failure onto the package
// taxonomy.
func classifyInitError(kind Kind, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case kind == Loopback && (strings.Contains(msg, "device type") || strings.Contains(msg, "not supported")):
		return fmt.Errorf("%w: loopback capture: %v", ErrCapabilityMissing, err)
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, kind, err)
	default:
		return fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, kind, err)
	}
}

func teardownContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}
