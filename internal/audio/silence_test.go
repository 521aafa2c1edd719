package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func loudChunk() []byte {
	buf := make([]byte, 320)
	for i := 0; i < 160; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(4000)))
	}
	return buf
}

func quietChunk() []byte {
	return make([]byte, 320)
}

func TestSilenceDetectorWaitsForSpeech(t *testing.T) {
	d := NewSilenceDetector(500, 1500*time.Millisecond)

	// silence before any speech never completes an utterance
	for i := 0; i < 50; i++ {
		assert.False(t, d.Feed(quietChunk()))
	}
	assert.False(t, d.Speaking())
}

func TestSilenceDetectorEndOfUtterance(t *testing.T) {
	now := time.Now()
	d := NewSilenceDetector(500, 1500*time.Millisecond)
	d.now = func() time.Time { return now }

	assert.False(t, d.Feed(loudChunk()))
	assert.True(t, d.Speaking())

	// first quiet chunk arms the timer
	assert.False(t, d.Feed(quietChunk()))

	now = now.Add(time.Second)
	assert.False(t, d.Feed(quietChunk()))

	now = now.Add(600 * time.Millisecond)
	assert.True(t, d.Feed(quietChunk()))
}

func TestSilenceDetectorSpeechRearms(t *testing.T) {
	now := time.Now()
	d := NewSilenceDetector(500, 1500*time.Millisecond)
	d.now = func() time.Time { return now }

	d.Feed(loudChunk())
	d.Feed(quietChunk())
	now = now.Add(time.Second)

	// speech resumes before the window elapses
	assert.False(t, d.Feed(loudChunk()))

	now = now.Add(2 * time.Second)
	// the old silence window must not count
	assert.False(t, d.Feed(quietChunk()))
	now = now.Add(1600 * time.Millisecond)
	assert.True(t, d.Feed(quietChunk()))
}

func TestSilenceDetectorReset(t *testing.T) {
	d := NewSilenceDetector(0, 0) // defaults
	assert.Equal(t, DefaultSilenceThreshold, d.Threshold)
	assert.Equal(t, DefaultSilenceDuration, d.Duration)

	d.Feed(loudChunk())
	assert.True(t, d.Speaking())
	d.Reset()
	assert.False(t, d.Speaking())
}
