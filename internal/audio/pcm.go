package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeFloat32LE converts a binary audio frame of little-endian IEEE 754
// float32 samples into a sample slice. The capture boundary delivers 16 kHz
// mono float blocks in this encoding.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio frame length %d is not a multiple of 4", len(data))
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// RMS computes the root mean square energy of a sample block
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
