package audio_test

import (
	"math"
	"testing"

	"github.com/atluriin/voicelink/pkg/audio"
)

func TestResample_OutputLength(t *testing.T) {
	tests := []struct {
		name       string
		inputLen   int
		sourceRate int
		wantLen    int
	}{
		{"48k downsample", 4096, 48000, 1365},
		{"same rate", 320, 16000, 320},
		{"44.1k downsample", 4410, 44100, 1600},
		{"8k upsample", 80, 8000, 160},
		{"single sample", 1, 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.inputLen)
			out := audio.Resample(in, tt.sourceRate)
			if len(out) != tt.wantLen {
				t.Errorf("Resample(%d samples @ %d Hz): got %d samples, want %d",
					tt.inputLen, tt.sourceRate, len(out), tt.wantLen)
			}
		})
	}
}

func TestResample_EmptyAndInvalid(t *testing.T) {
	if out := audio.Resample(nil, 48000); out != nil {
		t.Errorf("nil input: got %d samples, want nil", len(out))
	}
	if out := audio.Resample([]float32{0.5}, 0); out != nil {
		t.Errorf("zero rate: got %d samples, want nil", len(out))
	}
	if out := audio.Resample([]float32{0.5}, -16000); out != nil {
		t.Errorf("negative rate: got %d samples, want nil", len(out))
	}
}

func TestResample_AsymmetricScaling(t *testing.T) {
	// +1.0 must scale by 0x7fff and -1.0 by 0x8000 so neither overflows.
	out := audio.Resample([]float32{1, 1, 1, 1}, 16000)
	if out[0] != 32767 {
		t.Errorf("+1.0: got %d, want 32767", out[0])
	}
	out = audio.Resample([]float32{-1, -1, -1, -1}, 16000)
	if out[0] != -32768 {
		t.Errorf("-1.0: got %d, want -32768", out[0])
	}
}

func TestResample_Clamping(t *testing.T) {
	out := audio.Resample([]float32{2.5, 2.5}, 16000)
	if out[0] != 32767 {
		t.Errorf("over-range sample: got %d, want 32767", out[0])
	}
	out = audio.Resample([]float32{-3, -3}, 16000)
	if out[0] != -32768 {
		t.Errorf("under-range sample: got %d, want -32768", out[0])
	}
}

func TestResample_NaNDegradesToSilence(t *testing.T) {
	nan := float32(math.NaN())
	out := audio.Resample([]float32{nan, nan, nan, nan}, 16000)
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d: got %d, want 0", i, s)
		}
	}
}

func TestResample_Interpolates(t *testing.T) {
	// Downsampling 3:1 from 48 kHz lands output index 1 on source index 3.
	in := []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5}
	out := audio.Resample(in, 48000)
	if len(out) != 2 {
		t.Fatalf("got %d samples, want 2", len(out))
	}
	scale := 0.3
	want := int16(scale * 0x7fff)
	if diff := out[1] - want; diff < -1 || diff > 1 {
		t.Errorf("interpolated sample: got %d, want %d (±1)", out[1], want)
	}
}
