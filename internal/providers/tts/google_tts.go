package tts

import (
	"context"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/careerflow/interview/internal/audio"
)

type GoogleTTS struct {
	c        *texttospeech.Client
	Language string
	Voice    string
}

func NewGoogleTTS(ctx context.Context, language, voice string) (*GoogleTTS, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleTTS{c: c, Language: language, Voice: voice}, nil
}

func (g *GoogleTTS) Close() error { return g.c.Close() }

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	voice := &ttspb.VoiceSelectionParams{LanguageCode: g.Language}
	if g.Voice != "" {
		voice.Name = g.Voice
	}

	resp, err := g.c.SynthesizeSpeech(ctx, &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: voice,
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(audio.SampleRate),
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.AudioContent, nil
}
