package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/api/middleware"
	"github.com/careerflow/interview/internal/protocol"
)

// handshakeTimeout bounds how long a freshly opened socket may sit silent
// before sending its auth payload.
var handshakeTimeout = 10 * time.Second

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeBinary(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return w.c.WriteMessage(websocket.BinaryMessage, b)
}

func (w *wsConn) writeFrame(f protocol.ServerFrame) error {
	return w.writeText(f.JSON())
}

func (w *wsConn) writeError(msg string) {
	_ = w.writeFrame(protocol.ServerFrame{Type: protocol.TypeError, Message: msg})
}

// readHandshake waits for the first frame and resolves the caller: an
// explicit user_id wins, otherwise the token's unverified subject. Returns
// ("", ...) after sending an error frame when authentication fails.
func readHandshake(conn *websocket.Conn, wc *wsConn, log *logrus.Entry) (userID, kind string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		wc.writeError("Auth timeout")
		return "", "", false
	}

	var hs protocol.Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		wc.writeError("Invalid handshake")
		return "", "", false
	}

	kind = hs.InterviewType
	if kind != protocol.KindBehavioral {
		kind = protocol.KindTechnical
	}

	userID = hs.UserID
	if userID == "" {
		userID = middleware.SubjectFromToken(hs.AccessToken)
	}
	if userID == "" {
		log.Error("handshake rejected: no user_id and no usable token")
		wc.writeError("Authentication required")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
			time.Now().Add(time.Second))
		return "", "", false
	}
	return userID, kind, true
}
