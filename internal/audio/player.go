package audio

import "io"

// Player is the playback capability boundary: play one opaque encoded audio
// payload to completion. The session client serializes calls, so
// implementations never see concurrent Play invocations.
type Player interface {
	Play(payload []byte) error
	Close() error
}

// WriterPlayer streams payloads to an io.Writer (a file, a pipe into an
// external audio tool, or io.Discard).
type WriterPlayer struct {
	W io.Writer
}

func (p *WriterPlayer) Play(payload []byte) error {
	_, err := p.W.Write(payload)
	return err
}

func (p *WriterPlayer) Close() error {
	if c, ok := p.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NopPlayer discards payloads. Useful for text-leaning runs of a voice
// session and for tests.
type NopPlayer struct{}

func (NopPlayer) Play([]byte) error { return nil }
func (NopPlayer) Close() error      { return nil }
