package audio_test

import (
	"testing"

	"github.com/atluriin/voicelink/pkg/audio"
)

func TestFramer_EmitsCompleteFrames(t *testing.T) {
	var f audio.Framer

	frames := f.Push(make([]int16, 700))
	if len(frames) != 2 {
		t.Fatalf("700 samples: got %d frames, want 2", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != audio.FrameBytes {
			t.Errorf("frame %d: got %d bytes, want %d", i, len(frame), audio.FrameBytes)
		}
		if len(frame)%2 != 0 {
			t.Errorf("frame %d: odd byte length %d", i, len(frame))
		}
	}
	if f.Pending() != 60 {
		t.Errorf("pending: got %d samples, want 60", f.Pending())
	}
}

func TestFramer_CarriesRemainderAcrossPushes(t *testing.T) {
	var f audio.Framer

	if frames := f.Push(make([]int16, 300)); frames != nil {
		t.Fatalf("300 samples: got %d frames, want none", len(frames))
	}
	frames := f.Push(make([]int16, 30))
	if len(frames) != 1 {
		t.Fatalf("300+30 samples: got %d frames, want 1", len(frames))
	}
	if f.Pending() != 10 {
		t.Errorf("pending: got %d, want 10", f.Pending())
	}
}

func TestFramer_ResampleScenario(t *testing.T) {
	// 4096 float samples at 48 kHz resample to 1365 int16 samples, which
	// frame into 4 complete 320-sample frames with 45 samples buffered.
	var f audio.Framer
	samples := audio.Resample(make([]float32, 4096), 48000)
	if len(samples) != 1365 {
		t.Fatalf("resample: got %d samples, want 1365", len(samples))
	}
	frames := f.Push(samples)
	if len(frames) != 4 {
		t.Errorf("got %d frames, want 4", len(frames))
	}
	if f.Pending() != 45 {
		t.Errorf("pending: got %d samples, want 45", f.Pending())
	}
}

func TestFramer_ByteOrder(t *testing.T) {
	var f audio.Framer
	samples := make([]int16, audio.FrameSamples)
	samples[0] = 0x0102
	frames := f.Push(samples)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0][0] != 0x02 || frames[0][1] != 0x01 {
		t.Errorf("little-endian order: got [%#x %#x], want [0x02 0x01]", frames[0][0], frames[0][1])
	}
}

func TestFramer_Reset(t *testing.T) {
	var f audio.Framer
	f.Push(make([]int16, 100))
	f.Reset()
	if f.Pending() != 0 {
		t.Errorf("pending after reset: got %d, want 0", f.Pending())
	}
}

func TestInt16BytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("length: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}
