package client

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/utils"
)

// readLoop is the inbound multiplexer: every transport frame is classified
// as binary audio or a textual control/message frame and dispatched in
// receipt order. Malformed frames are logged and dropped; the loop never
// panics on bad input.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.generation != gen
			finished := c.state == StateFeedback
			c.mu.Unlock()
			if stale || finished {
				return
			}
			c.fail(gen, utils.E(utils.CodeConnection, "Client.readLoop", "interview transport closed", err))
			return
		}

		if messageType == websocket.BinaryMessage {
			c.enqueuePlayback(data, gen)
			continue
		}

		frame, perr := protocol.ParseServerFrame(data)
		if perr != nil {
			c.log.WithFields(logrus.Fields{"len": len(data)}).
				WithError(perr).Warn("dropping malformed frame")
			continue
		}
		if !c.dispatch(frame, gen) {
			return
		}
	}
}

// dispatch applies one textual frame. Returns false once the session is no
// longer interested in this connection's frames.
func (c *Client) dispatch(f *protocol.ServerFrame, gen int) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}

	switch f.Type {
	case protocol.TypeConfig:
		c.jobTitle = f.JobTitle
		c.mu.Unlock()
		c.opts.Events.emitConfig(f.JobTitle)

	case protocol.TypeEvent:
		return c.dispatchEventLocked(f)

	case protocol.TypeMessage:
		entry := TranscriptEntry{Role: f.Role, Content: f.Content, At: time.Now()}
		c.transcript = append(c.transcript, entry)
		c.mu.Unlock()
		c.opts.Events.emitTranscript(entry)

	case protocol.TypeFeedback:
		fb := f.Data
		if fb == nil {
			fb = &protocol.Feedback{}
		}
		c.feedback = fb
		changed := c.state != StateFeedback
		c.state = StateFeedback
		c.mu.Unlock()
		c.opts.Events.emitFeedback(fb)
		if changed {
			c.opts.Events.emitState(StateFeedback)
		}

	case protocol.TypeError:
		c.mu.Unlock()
		// server-reported errors surface to the UI but do not close the
		// session on their own
		c.opts.Events.emitError(utils.E(utils.CodeServer, "Client.dispatch", f.Message, nil))

	default:
		c.mu.Unlock()
		c.log.WithField("type", f.Type).Debug("ignoring unknown frame type")
	}
	return true
}

// dispatchEventLocked handles type=event frames. Called with c.mu held;
// releases it before emitting.
func (c *Client) dispatchEventLocked(f *protocol.ServerFrame) bool {
	switch f.Event {
	case protocol.EventThinking:
		active := f.Status == "start"
		c.thinking = active
		c.mu.Unlock()
		c.opts.Events.emitThinking(active)

	case protocol.EventStageChange:
		c.stage = f.Stage
		terminal := protocol.TerminalStage(f.Stage)
		toProcessing := terminal && c.state == StateActive
		if toProcessing {
			c.state = StateProcessing
		}
		c.mu.Unlock()
		c.opts.Events.emitStage(f.Stage)
		if toProcessing {
			c.opts.Events.emitState(StateProcessing)
		}

	case protocol.EventAudioState:
		// authoritative over locally inferred state
		c.audioState = f.State
		c.mu.Unlock()
		c.opts.Events.emitAudioState(f.State)

	case protocol.EventProcessing:
		toProcessing := f.Status != "stop" && c.state == StateActive
		if toProcessing {
			c.state = StateProcessing
		}
		c.mu.Unlock()
		if toProcessing {
			c.opts.Events.emitState(StateProcessing)
		}

	default:
		c.mu.Unlock()
		c.log.WithField("event", f.Event).Debug("ignoring unknown event")
	}
	return true
}
