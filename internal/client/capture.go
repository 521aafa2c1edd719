package client

import (
	"github.com/gorilla/websocket"

	"github.com/careerflow/interview/internal/audio"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/utils"
)

// captureLoop is the outbound audio pipeline (voice mode). Each captured
// float buffer is converted to int16 PCM and transmitted as one binary
// frame, but only while the agent is listening: frames captured while the
// agent thinks or speaks, while muted, or after a terminal stage are
// dropped. The gate is re-evaluated per buffer, so a mute toggle takes
// effect before the next buffer goes out.
func (c *Client) captureLoop(gen int) {
	for {
		frame, err := c.opts.Capture.Read()
		if err != nil {
			// source exhausted or released; the session continues on the
			// text channel until ended
			return
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.level = audio.RMSFloat(frame)
		conn := c.conn
		send := conn != nil &&
			c.state == StateActive &&
			c.audioState == protocol.AudioListening &&
			!c.muted &&
			!protocol.TerminalStage(c.stage)
		c.mu.Unlock()

		if !send {
			continue
		}
		if werr := c.write(conn, websocket.BinaryMessage, audio.FloatToPCM16(frame)); werr != nil {
			c.fail(gen, utils.E(utils.CodeConnection, "Client.captureLoop", "failed to send audio frame", werr))
			return
		}
	}
}
