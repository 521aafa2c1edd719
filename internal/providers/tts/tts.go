package tts

import "context"

// Provider synthesizes speech for the interview agent. Output is
// wire-format PCM (LINEAR16, 16 kHz mono) so handlers can compute playback
// duration directly from byte length.
type Provider interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}
