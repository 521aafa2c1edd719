package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerflow/interview/internal/protocol"
)

type handshakeResult struct {
	userID string
	kind   string
	ok     bool
}

// handshakeServer upgrades one connection, runs readHandshake, and reports
// the outcome.
func handshakeServer(t *testing.T, results chan<- handshakeResult) string {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		wc := &wsConn{c: conn}
		userID, kind, ok := readHandshake(conn, wc, logrus.New().WithField("test", t.Name()))
		results <- handshakeResult{userID: userID, kind: kind, ok: ok}
		time.Sleep(100 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAndSend(t *testing.T, url string, hs protocol.Handshake) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, hs.JSON()))
	return conn
}

func unverifiedToken(sub string) string {
	seg := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	return seg(`{"alg":"HS256","typ":"JWT"}`) + "." + seg(`{"sub":"`+sub+`"}`) + "." + seg("sig")
}

func TestReadHandshakeExplicitUserID(t *testing.T) {
	results := make(chan handshakeResult, 1)
	url := handshakeServer(t, results)

	dialAndSend(t, url, protocol.Handshake{UserID: "u-1", InterviewType: protocol.KindBehavioral})

	res := <-results
	assert.True(t, res.ok)
	assert.Equal(t, "u-1", res.userID)
	assert.Equal(t, protocol.KindBehavioral, res.kind)
}

func TestReadHandshakeTokenSubjectFallback(t *testing.T) {
	results := make(chan handshakeResult, 1)
	url := handshakeServer(t, results)

	dialAndSend(t, url, protocol.Handshake{AccessToken: unverifiedToken("u-9")})

	res := <-results
	assert.True(t, res.ok)
	assert.Equal(t, "u-9", res.userID)
	assert.Equal(t, protocol.KindTechnical, res.kind, "unknown kinds normalize to technical")
}

func TestReadHandshakeTimesOut(t *testing.T) {
	old := handshakeTimeout
	handshakeTimeout = 100 * time.Millisecond
	t.Cleanup(func() { handshakeTimeout = old })

	results := make(chan handshakeResult, 1)
	url := handshakeServer(t, results)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	// send nothing

	select {
	case res := <-results:
		assert.False(t, res.ok)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not time out")
	}
}

func TestReadHandshakeRejectsAnonymous(t *testing.T) {
	results := make(chan handshakeResult, 1)
	url := handshakeServer(t, results)

	conn := dialAndSend(t, url, protocol.Handshake{})

	res := <-results
	assert.False(t, res.ok)

	// the client sees an error frame before the close
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.ParseServerFrame(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeError, frame.Type)
}
