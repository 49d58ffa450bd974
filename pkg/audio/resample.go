package audio

import "math"

// Resample converts mono float32 samples captured at sourceRate to int16
// samples at [TargetRate] using linear interpolation.
//
// The output length is floor(len(samples) / (sourceRate / TargetRate)). Any
// source index past the end of the input reads as zero, samples are clamped
// to [-1, 1], and NaN degrades to silence. Scaling to int16 is asymmetric:
// negative values scale by 0x8000 and non-negative by 0x7fff, so that +1.0
// cannot overflow.
//
// Resample never panics; empty input or a non-positive rate yields nil.
func Resample(samples []float32, sourceRate int) []int16 {
	if len(samples) == 0 || sourceRate <= 0 {
		return nil
	}

	ratio := float64(sourceRate) / float64(TargetRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := sampleAt(samples, srcIdx)
		s1 := sampleAt(samples, srcIdx+1)
		sample := s0 + (s1-s0)*frac

		if math.IsNaN(sample) {
			sample = 0
		}
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}

		if sample < 0 {
			out[i] = int16(sample * 0x8000)
		} else {
			out[i] = int16(sample * 0x7fff)
		}
	}
	return out
}

// sampleAt reads samples[i], treating out-of-range indices as silence.
func sampleAt(samples []float32, i int) float64 {
	if i < 0 || i >= len(samples) {
		return 0
	}
	return float64(samples[i])
}
