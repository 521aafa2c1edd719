// Package audio holds the PCM plumbing shared by the session client and the
// interview service: float <-> int16 conversion, level metering, silence
// detection, and the capture/playback capability boundary.
package audio

import (
	"encoding/binary"
	"math"
)

// Wire format: little-endian signed 16-bit PCM, mono, 16 kHz.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	BytesPerSecond = SampleRate * BytesPerSample

	// FrameSamples is the fixed capture buffer size. Small power of two to
	// bound latency (4096 samples = 256 ms at 16 kHz).
	FrameSamples = 4096
)

// FloatToPCM16 converts floating-point samples to signed 16-bit PCM bytes.
// Each sample is clamped to [-1, 1]; negative values scale by 32768 and
// non-negative by 32767, so ±1.0 maps exactly onto the int16 range with no
// overflow.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat is the inverse mapping, used by file-backed capture sources.
func PCM16ToFloat(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// RMS computes the root mean square of int16 PCM bytes. Empty or odd-length
// input metering to zero keeps callers branch-free.
func RMS(data []byte) float64 {
	n := len(data) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// RMSFloat meters floating-point capture buffers on a 0..1 scale.
func RMSFloat(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Duration returns the playback time in seconds of int16 PCM at the wire
// sample rate.
func Duration(data []byte) float64 {
	return float64(len(data)) / float64(BytesPerSecond)
}
