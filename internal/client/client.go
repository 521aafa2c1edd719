// Package client implements the interview session client: one full-duplex
// socket per session multiplexing control events, transcript messages and
// binary audio, with a small state machine the UI subscribes to.
//
// All mutable session state lives behind a single mutex; the read loop, the
// capture loop and the playback queue never touch it concurrently without
// that lock. Event callbacks are invoked outside the lock, in dispatch
// order for frames arriving on the transport.
package client

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/audio"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/utils"
)

// State is the session lifecycle: Idle -> Connecting -> Active ->
// Processing -> Feedback, with an error path back to Idle from any state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateProcessing State = "processing"
	StateFeedback   State = "feedback"
)

// Mode selects the session transport path.
type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// Kind is the interview variant. Wire values differ from UI values.
type Kind string

const (
	KindTechnical  Kind = "technical"
	KindBehavioral Kind = "behavioral"
)

func (k Kind) wire() string {
	if k == KindBehavioral {
		return protocol.KindBehavioral
	}
	return protocol.KindTechnical
}

// TranscriptEntry is one turn of dialogue.
type TranscriptEntry struct {
	Role    string    `json:"role"` // user|assistant
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Options configures a session client.
type Options struct {
	ServerURL   string // base URL, e.g. "ws://localhost:8080"
	JobRef      string
	Mode        Mode
	Kind        Kind
	AccessToken string
	UserID      string

	// Voice mode capabilities. Capture is required in voice mode; Player
	// defaults to audio.NopPlayer.
	Capture audio.CaptureSource
	Player  audio.Player

	Events Events
	Logger *logrus.Logger
	Dialer *websocket.Dialer
}

// Client manages one interview session at a time. Construct with New; a
// Client may be reused for consecutive sessions.
type Client struct {
	opts   Options
	log    *logrus.Logger
	dialer *websocket.Dialer

	mu         sync.Mutex
	state      State
	stage      string
	audioState string
	muted      bool
	thinking   bool
	jobTitle   string
	transcript []TranscriptEntry
	feedback   *protocol.Feedback
	lastErr    error
	startedAt  time.Time
	level      float64

	conn    *websocket.Conn
	writeMu sync.Mutex

	// generation fences stale transport callbacks after End: anything
	// arriving for an older generation is discarded, including a late
	// feedback frame.
	generation int

	queue   [][]byte
	playing bool
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Player == nil {
		opts.Player = audio.NopPlayer{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeText
	}
	if opts.Kind == "" {
		opts.Kind = KindTechnical
	}
	d := opts.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	return &Client{
		opts:       opts,
		log:        opts.Logger,
		dialer:     d,
		state:      StateIdle,
		audioState: protocol.AudioIdle,
	}
}

// sessionURL builds the endpoint path: /ws/interview/{job} for voice,
// /ws/interview/text/{job} for text.
func (c *Client) sessionURL() (string, error) {
	base := strings.TrimRight(c.opts.ServerURL, "/")
	p := "/ws/interview/"
	if c.opts.Mode == ModeText {
		p = "/ws/interview/text/"
	}
	u := base + p + url.PathEscape(c.opts.JobRef)
	if _, err := url.Parse(u); err != nil {
		return "", err
	}
	return u, nil
}

// Start opens the session: acquires the capture capability (voice mode),
// dials the transport, and sends the handshake. The session is Active once
// the handshake is written; there is no explicit server ack.
func (c *Client) Start(ctx context.Context) error {
	const op = "Client.Start"

	c.mu.Lock()
	if c.state != StateIdle && c.state != StateFeedback {
		c.mu.Unlock()
		return utils.E(utils.CodeConflict, op, "session already in progress", nil)
	}
	// Fence out the previous session: after feedback the server may still
	// hold the old socket open, and its read loop must not feed the new
	// transcript.
	c.generation++
	old := c.conn
	c.conn = nil
	c.resetLocked()
	c.state = StateConnecting
	gen := c.generation
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.opts.Events.emitState(StateConnecting)

	if c.opts.Mode == ModeVoice {
		if c.opts.Capture == nil {
			c.failStart(gen)
			return utils.E(utils.CodeInvalidArgument, op, "voice mode requires a capture source", nil)
		}
		if err := c.opts.Capture.Start(); err != nil {
			c.failStart(gen)
			return utils.E(utils.CodePermissionDenied, op, "microphone unavailable", err)
		}
	}

	endpoint, err := c.sessionURL()
	if err != nil {
		c.releaseCapture()
		c.failStart(gen)
		return utils.E(utils.CodeInvalidArgument, op, "invalid server url", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.releaseCapture()
		c.failStart(gen)
		return utils.E(utils.CodeConnection, op, "failed to open interview transport", err)
	}

	hs := protocol.Handshake{
		AccessToken:   c.opts.AccessToken,
		InterviewType: c.opts.Kind.wire(),
		UserID:        c.opts.UserID,
	}
	if err := c.write(conn, websocket.TextMessage, hs.JSON()); err != nil {
		_ = conn.Close()
		c.releaseCapture()
		c.failStart(gen)
		return utils.E(utils.CodeConnection, op, "failed to send handshake", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// End raced us; tear down what we just opened.
		c.mu.Unlock()
		_ = conn.Close()
		c.releaseCapture()
		return nil
	}
	c.conn = conn
	c.startedAt = time.Now()
	c.state = StateActive
	c.mu.Unlock()
	c.opts.Events.emitState(StateActive)

	go c.readLoop(conn, gen)
	if c.opts.Mode == ModeVoice {
		go c.captureLoop(gen)
	}
	return nil
}

// failStart returns the client to Idle after a Start failure, unless End
// already bumped the generation.
func (c *Client) failStart(gen int) {
	c.mu.Lock()
	changed := c.generation == gen && c.state == StateConnecting
	if changed {
		c.state = StateIdle
	}
	c.mu.Unlock()
	if changed {
		c.opts.Events.emitState(StateIdle)
	}
}

func (c *Client) releaseCapture() {
	if c.opts.Mode == ModeVoice && c.opts.Capture != nil {
		_ = c.opts.Capture.Stop()
	}
}

// End tears the session down: closes the transport, releases the capture
// capability and the playback queue. Idempotent; safe before Start and from
// any state. Teardown never panics or returns an error.
func (c *Client) End() {
	c.mu.Lock()
	c.generation++
	conn := c.conn
	c.conn = nil
	c.queue = nil
	c.playing = false
	c.thinking = false
	c.audioState = protocol.AudioIdle
	toIdle := c.state != StateFeedback && c.state != StateIdle
	if toIdle {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.releaseCapture()
	_ = c.opts.Player.Close()

	if toIdle {
		c.opts.Events.emitState(StateIdle)
	}
}

// SendText sends a user text turn. Valid in text mode, or as the auxiliary
// channel in voice mode. The entry is appended to the transcript locally;
// the server does not echo user turns.
func (c *Client) SendText(content string) error {
	const op = "Client.SendText"

	if strings.TrimSpace(content) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "empty message", nil)
	}

	c.mu.Lock()
	conn := c.conn
	ok := c.state == StateActive
	c.mu.Unlock()
	if conn == nil || !ok {
		return utils.E(utils.CodeConnection, op, "session transport is not open", nil)
	}

	if err := c.write(conn, websocket.TextMessage, protocol.ClientText{Message: content}.JSON()); err != nil {
		return utils.E(utils.CodeConnection, op, "failed to send message", err)
	}

	entry := TranscriptEntry{Role: "user", Content: content, At: time.Now()}
	c.mu.Lock()
	c.transcript = append(c.transcript, entry)
	c.mu.Unlock()
	c.opts.Events.emitTranscript(entry)
	return nil
}

// SetMuted gates the outbound audio pipeline. Takes effect before the next
// capture buffer is transmitted.
func (c *Client) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

func (c *Client) write(conn *websocket.Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(messageType, data)
}

func (c *Client) resetLocked() {
	c.stage = ""
	c.audioState = protocol.AudioIdle
	c.thinking = false
	c.jobTitle = ""
	c.transcript = nil
	c.feedback = nil
	c.lastErr = nil
	c.queue = nil
	c.playing = false
	c.level = 0
}

// fail surfaces a transport-level failure: the error is reported once and
// the session returns to Idle. No automatic retry; the user re-invokes
// Start.
func (c *Client) fail(gen int, err error) {
	c.mu.Lock()
	if c.generation != gen || c.state == StateFeedback || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.lastErr = err
	conn := c.conn
	c.conn = nil
	c.queue = nil
	c.playing = false
	c.state = StateIdle
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.releaseCapture()
	c.log.WithError(err).Warn("interview session failed")
	c.opts.Events.emitError(err)
	c.opts.Events.emitState(StateIdle)
}
