package audio

import "math"

// TrimOddByte drops a trailing odd byte so the chunk holds a whole
// number of 16-bit samples. Clients occasionally split a sample across
// chunk boundaries; the half sample is discarded rather than carried.
func TrimOddByte(data []byte) []byte {
	if len(data)%2 != 0 {
		return data[:len(data)-1]
	}
	return data
}

// DecodePCM16 interprets data as little-endian 16-bit signed PCM.
// The length must be even; use TrimOddByte first.
func DecodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// EncodePCM16 converts samples back to little-endian 16-bit bytes.
func EncodePCM16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		data[i*2] = byte(sample)
		data[i*2+1] = byte(sample >> 8)
	}
	return data
}

// CalculateRMS calculates the root mean square of audio samples.
// Used for detecting audio levels and silence.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
