// Package protocol defines the JSON frames exchanged over an interview
// session socket. Text frames carry one of the structures below; binary
// frames carry audio and are opaque at this layer (little-endian 16-bit
// PCM upstream, encoded synthesis downstream).
package protocol

import "encoding/json"

// Frame type discriminators (server -> client unless noted).
const (
	TypeConfig   = "config"
	TypeEvent    = "event"
	TypeMessage  = "message"
	TypeFeedback = "feedback"
	TypeError    = "error"
)

// Event subtypes.
const (
	EventThinking    = "thinking"
	EventStageChange = "stage_change"
	EventAudioState  = "audio_state"
	EventProcessing  = "processing"
)

// Audio states pushed by the server in voice mode. Authoritative over any
// locally inferred state.
const (
	AudioIdle      = "idle"
	AudioThinking  = "thinking"
	AudioSpeaking  = "speaking"
	AudioListening = "listening"
)

// Interview kinds on the wire.
const (
	KindTechnical  = "TECHNICAL"
	KindBehavioral = "HR"
)

// Handshake is the first text frame the client sends after the transport
// opens. There is no explicit ack; the server's config frame (if any) and
// subsequent events imply acceptance.
type Handshake struct {
	AccessToken   string `json:"access_token"`
	InterviewType string `json:"interview_type"`
	UserID        string `json:"user_id"`
}

// ClientText is a user text turn (text mode, or auxiliary text in voice mode).
type ClientText struct {
	Message string `json:"message"`
}

// ServerFrame is the envelope for every textual server frame. Only the
// fields relevant to the discriminated Type are populated.
type ServerFrame struct {
	Type string `json:"type"`

	// type=config
	JobTitle      string `json:"job_title,omitempty"`
	InterviewType string `json:"interview_type,omitempty"`
	UserName      string `json:"user_name,omitempty"`

	// type=event
	Event  string `json:"event,omitempty"`
	Status string `json:"status,omitempty"` // thinking/processing: start|stop
	Stage  string `json:"stage,omitempty"`  // stage_change
	State  string `json:"state,omitempty"`  // audio_state

	// type=message
	Role    string `json:"role,omitempty"` // user|assistant
	Content string `json:"content,omitempty"`

	// type=feedback
	Data *Feedback `json:"data,omitempty"`

	// type=error
	Message string `json:"message,omitempty"`
}

// Feedback is the terminal artifact of a session.
type Feedback struct {
	Score            int      `json:"score"`
	Verdict          string   `json:"verdict"`
	Summary          string   `json:"summary,omitempty"`
	Strengths        []string `json:"strengths,omitempty"`
	Improvements     []string `json:"improvements,omitempty"`
	RoadmapAdditions []string `json:"roadmap_additions,omitempty"`
}

// Marshal helpers keep handler code terse; failure cannot happen for these
// types so the error is intentionally dropped.

func (f ServerFrame) JSON() []byte {
	b, _ := json.Marshal(f)
	return b
}

func (h Handshake) JSON() []byte {
	b, _ := json.Marshal(h)
	return b
}

func (t ClientText) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}

// ParseServerFrame decodes a textual server frame. A frame without a type
// discriminator is rejected so malformed input never reaches dispatch.
func ParseServerFrame(data []byte) (*ServerFrame, error) {
	var f ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Type == "" {
		return nil, ErrMissingType
	}
	return &f, nil
}
