package audio

import (
	"encoding/binary"
	"math"
)

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FloatsToInt16Into converts float samples in [-1, 1] to int16, clipping
// out-of-range values. dst must be at least len(src) long.
func FloatsToInt16Into(src []float32, dst []int16) []int16 {
	for i, v := range src {
		s := float64(v) * 32767
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		dst[i] = int16(s)
	}
	return dst[:len(src)]
}

// Float32ToBytesInto writes float32 samples as little-endian bytes into dst,
// which must hold len(src)*4 bytes. It does not allocate.
func Float32ToBytesInto(src []float32, dst []byte) []byte {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return dst[:len(src)*4]
}
