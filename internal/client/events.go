package client

import "github.com/careerflow/interview/internal/protocol"

// Events is the narrow subscription surface the UI registers on a session
// client. All callbacks are optional. They run on the client's dispatch
// goroutines, outside internal locks, so handlers may call snapshot
// accessors but should hand heavy work to their own loop.
type Events struct {
	OnState      func(State)
	OnStage      func(stage string)
	OnTranscript func(TranscriptEntry)
	OnThinking   func(active bool)
	OnAudioState func(state string)
	OnConfig     func(jobTitle string)
	OnFeedback   func(*protocol.Feedback)
	OnError      func(error)
}

func (e Events) emitState(s State) {
	if e.OnState != nil {
		e.OnState(s)
	}
}

func (e Events) emitStage(stage string) {
	if e.OnStage != nil {
		e.OnStage(stage)
	}
}

func (e Events) emitTranscript(entry TranscriptEntry) {
	if e.OnTranscript != nil {
		e.OnTranscript(entry)
	}
}

func (e Events) emitThinking(active bool) {
	if e.OnThinking != nil {
		e.OnThinking(active)
	}
}

func (e Events) emitAudioState(state string) {
	if e.OnAudioState != nil {
		e.OnAudioState(state)
	}
}

func (e Events) emitConfig(jobTitle string) {
	if e.OnConfig != nil {
		e.OnConfig(jobTitle)
	}
}

func (e Events) emitFeedback(fb *protocol.Feedback) {
	if e.OnFeedback != nil {
		e.OnFeedback(fb)
	}
}

func (e Events) emitError(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}
