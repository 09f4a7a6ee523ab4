package audio

import "fmt"

// Resample converts 16-bit PCM samples from srcRate to dstRate using
// linear interpolation. When the rates match the input is returned
// unchanged. Each call is independent: no fractional phase is carried
// across chunks, so interpolation restarts at every chunk boundary.
//
// Panics if either rate is zero or negative; that is a programmer
// error, not a runtime condition.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 {
		panic(fmt.Sprintf("audio: invalid sample rate (src=%d, dst=%d)", srcRate, dstRate))
	}
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	outputLength := int(float64(len(samples)) / ratio)
	output := make([]int16, outputLength)

	for i := 0; i < outputLength; i++ {
		// Source position for this output sample
		srcPos := float64(i) * ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		// Interpolate between the two neighboring samples, truncating
		// toward zero
		fraction := srcPos - float64(idx0)
		output[i] = int16(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}
