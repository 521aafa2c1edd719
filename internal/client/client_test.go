package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/utils"
)

// wsTestServer runs one session handler per connection and returns the ws
// base URL to dial.
func wsTestServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readClientHandshake(t *testing.T, conn *websocket.Conn) protocol.Handshake {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Time{})

	var hs protocol.Handshake
	require.NoError(t, json.Unmarshal(data, &hs))
	return hs
}

func sendFrame(t *testing.T, conn *websocket.Conn, f protocol.ServerFrame) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, f.JSON()))
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

// chanCapture is a capture source fed by the test, frame by frame.
type chanCapture struct {
	frames  chan []float32
	stopped chan struct{}
	once    sync.Once
}

func newChanCapture() *chanCapture {
	return &chanCapture{frames: make(chan []float32, 8), stopped: make(chan struct{})}
}

func (c *chanCapture) Start() error { return nil }

func (c *chanCapture) Read() ([]float32, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.stopped:
		return nil, io.EOF
	}
}

func (c *chanCapture) Stop() error {
	c.once.Do(func() { close(c.stopped) })
	return nil
}

// chanPlayer records played payloads and can fail on demand.
type chanPlayer struct {
	played chan []byte
	fail   func(n int) bool
	n      int
}

func (p *chanPlayer) Play(payload []byte) error {
	p.n++
	p.played <- payload
	if p.fail != nil && p.fail(p.n) {
		return errors.New("playback device gone")
	}
	return nil
}

func (p *chanPlayer) Close() error { return nil }

func TestTextSessionLifecycle(t *testing.T) {
	states := make(chan State, 16)
	stagesCh := make(chan string, 16)
	transcripts := make(chan TranscriptEntry, 16)
	feedbacks := make(chan *protocol.Feedback, 4)
	configs := make(chan string, 4)

	url := wsTestServer(t, func(conn *websocket.Conn) {
		hs := readClientHandshake(t, conn)
		assert.Equal(t, protocol.KindTechnical, hs.InterviewType)
		assert.Equal(t, "u-1", hs.UserID)
		assert.Equal(t, "tok-abc", hs.AccessToken)

		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeConfig, JobTitle: "Backend Engineer"})
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventStageChange, Stage: protocol.StageIntro})
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "Welcome. Introduce yourself."})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg protocol.ClientText
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "I am ready.", msg.Message)

		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventStageChange, Stage: protocol.StageEnd})
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventProcessing, Status: "start"})
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeFeedback, Data: &protocol.Feedback{Score: 72, Verdict: "Hired"}})
	})

	c := New(Options{
		ServerURL:   url,
		JobRef:      "7",
		Mode:        ModeText,
		Kind:        KindTechnical,
		AccessToken: "tok-abc",
		UserID:      "u-1",
		Events: Events{
			OnState:      func(s State) { states <- s },
			OnStage:      func(s string) { stagesCh <- s },
			OnTranscript: func(e TranscriptEntry) { transcripts <- e },
			OnFeedback:   func(fb *protocol.Feedback) { feedbacks <- fb },
			OnConfig:     func(title string) { configs <- title },
		},
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	assert.Equal(t, StateConnecting, waitFor(t, states, "connecting"))
	assert.Equal(t, StateActive, waitFor(t, states, "active"))
	assert.Equal(t, "Backend Engineer", waitFor(t, configs, "config"))
	assert.Equal(t, protocol.StageIntro, waitFor(t, stagesCh, "intro stage"))

	entry := waitFor(t, transcripts, "assistant message")
	assert.Equal(t, "assistant", entry.Role)
	assert.Equal(t, "Welcome. Introduce yourself.", entry.Content)

	require.NoError(t, c.SendText("I am ready."))
	user := waitFor(t, transcripts, "local user echo")
	assert.Equal(t, "user", user.Role)

	assert.Equal(t, protocol.StageEnd, waitFor(t, stagesCh, "terminal stage"))
	assert.Equal(t, StateProcessing, waitFor(t, states, "processing"))

	fb := waitFor(t, feedbacks, "feedback")
	assert.Equal(t, 72, fb.Score)
	assert.Equal(t, StateFeedback, waitFor(t, states, "feedback state"))

	assert.Equal(t, StateFeedback, c.State())
	assert.Equal(t, 72, c.Feedback().Score)
	require.Len(t, c.Transcript(), 2)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	transcripts := make(chan TranscriptEntry, 4)
	errs := make(chan error, 4)

	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json at all")))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"thinking"}`))) // no type
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "still here"})
		time.Sleep(200 * time.Millisecond)
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		Mode:      ModeText,
		UserID:    "u-1",
		Events: Events{
			OnTranscript: func(e TranscriptEntry) { transcripts <- e },
			OnError:      func(err error) { errs <- err },
		},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	entry := waitFor(t, transcripts, "message after malformed frames")
	assert.Equal(t, "still here", entry.Content)
	select {
	case err := <-errs:
		t.Fatalf("malformed frames must not surface errors, got %v", err)
	default:
	}
}

func TestServerErrorFrameDoesNotEndSession(t *testing.T) {
	errs := make(chan error, 4)
	transcripts := make(chan TranscriptEntry, 4)

	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeError, Message: "transient backend issue"})
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "continuing"})
		time.Sleep(200 * time.Millisecond)
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		UserID:    "u-1",
		Events: Events{
			OnError:      func(err error) { errs <- err },
			OnTranscript: func(e TranscriptEntry) { transcripts <- e },
		},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	err := waitFor(t, errs, "server error")
	assert.True(t, utils.IsCode(err, utils.CodeServer))

	entry := waitFor(t, transcripts, "message after error frame")
	assert.Equal(t, "continuing", entry.Content)
	assert.Equal(t, StateActive, c.State())
}

func TestEndIsIdempotent(t *testing.T) {
	c := New(Options{ServerURL: "ws://localhost:1", JobRef: "7"})

	// End before any Start must be a no-op
	c.End()
	c.End()
	assert.Equal(t, StateIdle, c.State())

	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		_, _, _ = conn.ReadMessage() // block until the client hangs up
	})

	states := make(chan State, 8)
	c = New(Options{
		ServerURL: url,
		JobRef:    "7",
		UserID:    "u-1",
		Events:    Events{OnState: func(s State) { states <- s }},
	})
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateConnecting, waitFor(t, states, "connecting"))
	assert.Equal(t, StateActive, waitFor(t, states, "active"))

	c.End()
	assert.Equal(t, StateIdle, waitFor(t, states, "idle after end"))
	c.End()
	assert.Equal(t, StateIdle, c.State())
}

func TestStartWhileActiveConflicts(t *testing.T) {
	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		_, _, _ = conn.ReadMessage()
	})

	c := New(Options{ServerURL: url, JobRef: "7", UserID: "u-1"})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
}

func TestSendTextRequiresActiveSession(t *testing.T) {
	c := New(Options{ServerURL: "ws://localhost:1", JobRef: "7"})
	err := c.SendText("hello")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConnection))

	err = c.SendText("   ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestVoiceCaptureGatedByStageAndState(t *testing.T) {
	capture := newChanCapture()
	stagesCh := make(chan string, 8)
	audioStates := make(chan string, 8)
	gotBinary := make(chan []byte, 8)
	serverDone := make(chan struct{})

	url := wsTestServer(t, func(conn *websocket.Conn) {
		defer close(serverDone)
		readClientHandshake(t, conn)
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventAudioState, State: protocol.AudioListening})

		// one frame is expected while listening
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, mt)
		gotBinary <- data

		// after the terminal stage nothing more may arrive
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventStageChange, Stage: protocol.StageEnd})
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err, "no audio may be sent after the terminal stage")
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		Mode:      ModeVoice,
		UserID:    "u-1",
		Capture:   capture,
		Events: Events{
			OnStage:      func(s string) { stagesCh <- s },
			OnAudioState: func(s string) { audioStates <- s },
		},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	assert.Equal(t, protocol.AudioListening, waitFor(t, audioStates, "listening"))
	capture.frames <- []float32{0.5, -0.5, 0.25, -0.25}

	frame := waitFor(t, gotBinary, "binary frame")
	assert.Equal(t, 8, len(frame)) // 4 samples * 2 bytes

	assert.Equal(t, protocol.StageEnd, waitFor(t, stagesCh, "terminal stage"))
	capture.frames <- []float32{0.5, -0.5} // must be dropped

	waitFor(t, serverDone, "server assertions")
}

func TestMuteDropsFramesBeforeNextBuffer(t *testing.T) {
	capture := newChanCapture()
	audioStates := make(chan string, 8)
	gotBinary := make(chan []byte, 8)
	serverDone := make(chan struct{})

	url := wsTestServer(t, func(conn *websocket.Conn) {
		defer close(serverDone)
		readClientHandshake(t, conn)
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventAudioState, State: protocol.AudioListening})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, mt)
		gotBinary <- data

		// muted: the next buffer must not arrive
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err, "muted capture must not transmit")
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		Mode:      ModeVoice,
		UserID:    "u-1",
		Capture:   capture,
		Events:    Events{OnAudioState: func(s string) { audioStates <- s }},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	assert.Equal(t, protocol.AudioListening, waitFor(t, audioStates, "listening"))
	capture.frames <- []float32{0.1, 0.2}
	waitFor(t, gotBinary, "unmuted frame")

	c.SetMuted(true)
	capture.frames <- []float32{0.3, 0.4}
	waitFor(t, serverDone, "server assertions")
	assert.True(t, c.Muted())
	assert.Greater(t, c.InputLevel(), 0.0)
}

func TestPlaybackFIFOAdvancesPastErrors(t *testing.T) {
	player := &chanPlayer{
		played: make(chan []byte, 8),
		fail:   func(n int) bool { return n == 2 },
	}
	audioStates := make(chan string, 8)

	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		for _, payload := range [][]byte{{1}, {2}, {3}} {
			require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))
		}
		time.Sleep(500 * time.Millisecond)
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		Mode:      ModeVoice,
		UserID:    "u-1",
		Capture:   newChanCapture(),
		Player:    player,
		Events:    Events{OnAudioState: func(s string) { audioStates <- s }},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	assert.Equal(t, []byte{1}, waitFor(t, player.played, "payload 1"))
	assert.Equal(t, []byte{2}, waitFor(t, player.played, "payload 2"))
	assert.Equal(t, []byte{3}, waitFor(t, player.played, "payload 3"))

	// drained queue resumes listening in voice mode
	for {
		if waitFor(t, audioStates, "listening after drain") == protocol.AudioListening {
			break
		}
	}
}

func TestInterleavedMessagesAndAudio(t *testing.T) {
	player := &chanPlayer{played: make(chan []byte, 8)}
	transcripts := make(chan TranscriptEntry, 8)

	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "first"})
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xAA}))
		sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "second"})
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xBB}))
		time.Sleep(300 * time.Millisecond)
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		Mode:      ModeVoice,
		UserID:    "u-1",
		Capture:   newChanCapture(),
		Player:    player,
		Events:    Events{OnTranscript: func(e TranscriptEntry) { transcripts <- e }},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	// the transcript carries only message frames, in arrival order
	assert.Equal(t, "first", waitFor(t, transcripts, "first message").Content)
	assert.Equal(t, "second", waitFor(t, transcripts, "second message").Content)
	assert.Equal(t, []byte{0xAA}, waitFor(t, player.played, "first payload"))
	assert.Equal(t, []byte{0xBB}, waitFor(t, player.played, "second payload"))

	entries := c.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, "second", entries[1].Content)
}

func TestRestartFromFeedbackFencesOldTransport(t *testing.T) {
	transcripts := make(chan TranscriptEntry, 8)
	feedbacks := make(chan *protocol.Feedback, 4)
	states := make(chan State, 16)
	sendGhost := make(chan struct{})
	ghostSent := make(chan struct{})

	var sessions atomic.Int32
	url := wsTestServer(t, func(conn *websocket.Conn) {
		readClientHandshake(t, conn)
		switch sessions.Add(1) {
		case 1:
			sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeFeedback, Data: &protocol.Feedback{Score: 55}})
			// hold the socket open across the restart, then try to speak
			// into the new session
			<-sendGhost
			ghost := protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "ghost from session 1"}
			_ = conn.WriteMessage(websocket.TextMessage, ghost.JSON())
			close(ghostSent)
		default:
			<-ghostSent
			sendFrame(t, conn, protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: "fresh session"})
			time.Sleep(300 * time.Millisecond)
		}
	})

	c := New(Options{
		ServerURL: url,
		JobRef:    "7",
		UserID:    "u-1",
		Events: Events{
			OnState:      func(s State) { states <- s },
			OnTranscript: func(e TranscriptEntry) { transcripts <- e },
			OnFeedback:   func(fb *protocol.Feedback) { feedbacks <- fb },
		},
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.End()

	waitFor(t, feedbacks, "first session feedback")
	assert.Equal(t, StateFeedback, c.State())

	// reuse the client while the first socket is still open server-side
	require.NoError(t, c.Start(context.Background()))
	assert.Nil(t, c.Feedback(), "restart clears the previous feedback")
	close(sendGhost)

	entry := waitFor(t, transcripts, "message on the new session")
	assert.Equal(t, "fresh session", entry.Content)

	entries := c.Transcript()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh session", entries[0].Content)
	select {
	case fb := <-feedbacks:
		t.Fatalf("no feedback expected on the new session, got score %d", fb.Score)
	default:
	}
}

func TestStaleGenerationFramesAreDiscarded(t *testing.T) {
	feedbacks := make(chan *protocol.Feedback, 1)
	c := New(Options{
		JobRef: "7",
		Events: Events{OnFeedback: func(fb *protocol.Feedback) { feedbacks <- fb }},
	})

	c.mu.Lock()
	gen := c.generation
	c.generation++ // as End would
	c.mu.Unlock()

	ok := c.dispatch(&protocol.ServerFrame{
		Type: protocol.TypeFeedback,
		Data: &protocol.Feedback{Score: 90},
	}, gen)
	assert.False(t, ok)

	select {
	case <-feedbacks:
		t.Fatal("stale feedback must be discarded")
	default:
	}
	assert.Nil(t, c.Feedback())
}

func TestSessionURLPaths(t *testing.T) {
	c := New(Options{ServerURL: "ws://example.com/", JobRef: "73.0", Mode: ModeText})
	u, err := c.sessionURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws/interview/text/73.0", u)

	c = New(Options{ServerURL: "ws://example.com", JobRef: "18", Mode: ModeVoice})
	u, err = c.sessionURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/ws/interview/18", u)
}
