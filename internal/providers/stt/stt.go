package stt

import "context"

// Provider transcribes a complete utterance of linear PCM audio.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) (text string, confidence float64, err error)
	Close() error
}
