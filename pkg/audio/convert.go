package audio

import "encoding/binary"

// FloatToPCM16 converts float samples to signed 16-bit PCM. Each sample is
// clamped to [-1.0, 1.0] before scaling so boundary and out-of-range inputs
// cannot wrap around. The conversion is deterministic: identical input always
// yields identical output.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// PCM16Bytes serialises int16 samples as little-endian bytes (2 bytes per
// sample), the layout expected by PCM-over-wire backends.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToPCM16 is the inverse of [PCM16Bytes]. Trailing odd bytes are ignored.
func BytesToPCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
