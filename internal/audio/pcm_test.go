package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(b []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(b[i*2:]))
}

func TestFloatToPCM16Bounds(t *testing.T) {
	out := FloatToPCM16([]float32{0, 1, -1, 0.5, -0.5})
	require.Len(t, out, 10)

	assert.Equal(t, int16(0), sampleAt(out, 0))
	assert.Equal(t, int16(32767), sampleAt(out, 1))
	assert.Equal(t, int16(-32768), sampleAt(out, 2))
	assert.Equal(t, int16(16383), sampleAt(out, 3))
	assert.Equal(t, int16(-16384), sampleAt(out, 4))
}

func TestFloatToPCM16Clamps(t *testing.T) {
	out := FloatToPCM16([]float32{2.5, -3.1})
	assert.Equal(t, int16(32767), sampleAt(out, 0))
	assert.Equal(t, int16(-32768), sampleAt(out, 1))
}

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.99, -0.99, 1, -1}
	got := PCM16ToFloat(FloatToPCM16(in))
	require.Len(t, got, len(in))
	for i := range in {
		assert.InDelta(t, in[i], got[i], 1e-4, "sample %d", i)
	}
}

func TestRMSConstantSignal(t *testing.T) {
	buf := make([]byte, 200)
	for i := 0; i < 100; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(1000)))
	}
	assert.InDelta(t, 1000.0, RMS(buf), 0.01)
}

func TestRMSEmpty(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS([]byte{0x01})) // odd length has no full sample
	assert.Zero(t, RMSFloat(nil))
}

func TestRMSFloatSine(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*float64(i)/100))
	}
	// RMS of a sine at amplitude A is A/sqrt(2)
	assert.InDelta(t, 0.5/math.Sqrt2, RMSFloat(samples), 0.01)
}

func TestDuration(t *testing.T) {
	assert.InDelta(t, 1.0, Duration(make([]byte, BytesPerSecond)), 1e-9)
	assert.InDelta(t, 0.5, Duration(make([]byte, BytesPerSecond/2)), 1e-9)
	assert.Zero(t, Duration(nil))
}
