package audio

import (
	"errors"
	"io"
	"os"
)

// ErrCaptureDenied is returned by a CaptureSource whose underlying capability
// (microphone access) was refused by the host environment.
var ErrCaptureDenied = errors.New("audio capture permission denied")

// CaptureSource is the "microphone" capability boundary: a stream of
// fixed-size floating-point sample frames. Implementations own the real
// device; the session client only consumes frames.
//
// Start acquires the capability and may fail with ErrCaptureDenied.
// Read blocks for the next frame (FrameSamples samples) and returns io.EOF
// when the source is exhausted or stopped. Stop releases the capability and
// is idempotent.
type CaptureSource interface {
	Start() error
	Read() ([]float32, error)
	Stop() error
}

// PCMFileSource replays a raw little-endian int16 PCM file as capture
// frames, for driving a session from recorded audio.
type PCMFileSource struct {
	Path string

	f   *os.File
	buf []byte
}

func (s *PCMFileSource) Start() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	s.f = f
	s.buf = make([]byte, FrameSamples*BytesPerSample)
	return nil
}

func (s *PCMFileSource) Read() ([]float32, error) {
	if s.f == nil {
		return nil, io.EOF
	}
	n, err := io.ReadFull(s.f, s.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, io.EOF
	}
	// short tail frame is still delivered
	return PCM16ToFloat(s.buf[:n-n%BytesPerSample]), nil
}

func (s *PCMFileSource) Stop() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
