package frame

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxSample is the largest 16-bit sample value; normalized samples are
// sample/MaxSample.
const MaxSample = 65535

// DecodeSamples converts little-endian 16-bit samples into normalized floats
// in [0, 1]. dst must hold exactly len(src)/2 values.
func DecodeSamples(dst []float32, src []byte) error {
	if len(src) != len(dst)*BytesPerSample {
		return fmt.Errorf("%w: %d bytes for %d samples", ErrPlaneSize, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = float32(binary.LittleEndian.Uint16(src[i*BytesPerSample:])) / MaxSample
	}
	return nil
}

// EncodeSamples converts normalized floats back to little-endian 16-bit
// samples, clamping to [0, 1] and rounding to the nearest code.
func EncodeSamples(dst []byte, src []float32) error {
	if len(dst) != len(src)*BytesPerSample {
		return fmt.Errorf("%w: %d bytes for %d samples", ErrPlaneSize, len(dst), len(src))
	}
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], Quantize(v))
	}
	return nil
}

// Quantize maps a normalized value to the nearest 16-bit code.
func Quantize(v float32) uint16 {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return MaxSample
	}
	return uint16(math.Round(float64(v) * MaxSample))
}

// Sample reads the i-th sample of a plane buffer.
func Sample(buf []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(buf[i*BytesPerSample:])
}

// PutSample writes the i-th sample of a plane buffer.
func PutSample(buf []byte, i int, v uint16) {
	binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], v)
}

// Fill sets every sample of a plane buffer to v.
func Fill(buf []byte, v uint16) {
	for i := 0; i+1 < len(buf); i += BytesPerSample {
		binary.LittleEndian.PutUint16(buf[i:], v)
	}
}
