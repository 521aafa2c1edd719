package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/agent"
	"github.com/careerflow/interview/internal/audio"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/utils"
	"github.com/careerflow/interview/internal/workers"
)

// voiceSession bundles the per-connection state of one voice interview.
type voiceSession struct {
	wc        *wsConn
	iv        *agent.Interview
	sessionID string
	userID    string
	jobID     string
	kind      string
	log       *logrus.Entry

	detector *audio.SilenceDetector
	buffer   bytes.Buffer // current utterance
	recorded bytes.Buffer // whole session, for the archive worker

	state         string // protocol.Audio* constants, server-side authoritative
	lastAgentDone time.Time
}

// VoiceSession serves /ws/interview/:job_id. The whole session runs on
// this goroutine: receive candidate PCM, detect end of utterance,
// transcribe, run the interviewer, synthesize, send audio back.
func (h *WSHandler) VoiceSession(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	if h.STT == nil || h.TTS == nil {
		wc.writeError("Voice sessions are not available on this deployment")
		return
	}
	jobID := utils.NormalizeJobRef(c.Param("job_id"))
	log := h.Logger.WithFields(logrus.Fields{"mode": "voice", "job_id": jobID})

	userID, kind, ok := readHandshake(conn, wc, log)
	if !ok {
		return
	}
	log = log.WithField("user_id", userID)

	ctx := c.Request.Context()
	ictx, err := h.Contexts.Fetch(ctx, userID, jobID)
	if err != nil {
		log.WithError(err).Error("context fetch failed")
		wc.writeError("Failed to load interview context")
		return
	}

	vs := &voiceSession{
		wc:        wc,
		iv:        agent.NewInterview(h.LLM, h.Logger, kind, *ictx),
		sessionID: h.openSession(ctx, userID, jobID, kind, "voice", log),
		userID:    userID,
		jobID:     jobID,
		kind:      kind,
		log:       log,
		detector:  audio.NewSilenceDetector(audio.DefaultSilenceThreshold, audio.DefaultSilenceDuration),
		state:     protocol.AudioIdle,
	}

	_ = wc.writeFrame(protocol.ServerFrame{
		Type:          protocol.TypeConfig,
		InterviewType: kind,
		JobTitle:      ictx.Job.Title,
		UserName:      ictx.User.Name,
	})

	// opening question
	if ended := h.voiceTurn(ctx, vs, ""); ended {
		h.finishVoice(ctx, vs)
		return
	}

	for {
		messageType, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Info("client disconnected")
			h.abandonSession(ctx, vs.sessionID)
			return
		}

		if messageType != websocket.BinaryMessage {
			// auxiliary text channel
			var msg protocol.ClientText
			if err := json.Unmarshal(data, &msg); err != nil || strings.TrimSpace(msg.Message) == "" {
				continue
			}
			h.persistTurn(ctx, vs.sessionID, userID, "user", msg.Message, vs.iv.Stage())
			if ended := h.voiceTurn(ctx, vs, strings.TrimSpace(msg.Message)); ended {
				h.finishVoice(ctx, vs)
				return
			}
			continue
		}

		// audio is only meaningful while the agent listens, and not during
		// the cooldown right after it spoke
		if vs.state != protocol.AudioListening {
			continue
		}
		if time.Since(vs.lastAgentDone) < audio.DefaultCooldown {
			continue
		}

		vs.buffer.Write(data)
		vs.recorded.Write(data)
		if !vs.detector.Feed(data) {
			continue
		}

		// utterance complete
		h.setAudioState(vs, protocol.AudioThinking)
		userText, conf, terr := h.STT.Transcribe(ctx, vs.buffer.Bytes())
		vs.buffer.Reset()
		vs.detector.Reset()
		if terr != nil {
			log.WithError(terr).Error("transcription failed")
			h.setAudioState(vs, protocol.AudioListening)
			vs.lastAgentDone = time.Now()
			continue
		}
		if strings.TrimSpace(userText) == "" {
			log.Debug("empty transcription, back to listening")
			h.setAudioState(vs, protocol.AudioListening)
			vs.lastAgentDone = time.Now()
			continue
		}

		log.WithFields(logrus.Fields{"confidence": conf, "chars": len(userText)}).Info("utterance transcribed")
		h.persistTurn(ctx, vs.sessionID, userID, "user", userText, vs.iv.Stage())

		if ended := h.voiceTurn(ctx, vs, userText); ended {
			h.finishVoice(ctx, vs)
			return
		}
	}
}

// voiceTurn runs one interviewer turn and speaks the reply. Returns true
// when the interview has ended.
func (h *WSHandler) voiceTurn(ctx context.Context, vs *voiceSession, userText string) bool {
	h.setAudioState(vs, protocol.AudioThinking)

	reply, err := vs.iv.Next(ctx, userText)
	if err != nil {
		vs.log.WithError(err).Error("interviewer turn failed")
		vs.wc.writeError("The interviewer is unavailable. Please try again.")
		h.setAudioState(vs, protocol.AudioListening)
		vs.lastAgentDone = time.Now()
		return false
	}

	_ = vs.wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventStageChange, Stage: vs.iv.Stage()})
	_ = h.Sessions.AdvanceStage(ctx, vs.sessionID, vs.iv.Stage(), vs.iv.Turn())

	if vs.iv.Ending() {
		return true
	}
	if reply == "" {
		h.setAudioState(vs, protocol.AudioListening)
		return false
	}

	_ = vs.wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: reply})
	h.persistTurn(ctx, vs.sessionID, vs.userID, "assistant", reply, vs.iv.Stage())
	h.speak(ctx, vs, reply)
	h.setAudioState(vs, protocol.AudioListening)
	return false
}

// speak synthesizes and transmits one reply, then waits out the playback
// window so buffered candidate audio from the speaker phase is ignored.
func (h *WSHandler) speak(ctx context.Context, vs *voiceSession, text string) {
	h.setAudioState(vs, protocol.AudioSpeaking)

	pcm, err := h.TTS.Synthesize(ctx, agent.CleanSpoken(text))
	if err != nil {
		vs.log.WithError(err).Error("synthesis failed")
		return
	}
	if err := vs.wc.writeBinary(pcm); err != nil {
		vs.log.WithError(err).Warn("failed to send agent audio")
		return
	}

	wait := time.Duration((audio.Duration(pcm) + 0.5) * float64(time.Second))
	if wait < audio.DefaultCooldown {
		wait = audio.DefaultCooldown
	}
	time.Sleep(wait)
	vs.lastAgentDone = time.Now()
}

func (h *WSHandler) setAudioState(vs *voiceSession, state string) {
	if vs.state == state {
		return
	}
	vs.state = state
	_ = vs.wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventAudioState, State: state})
}

// finishVoice speaks the goodbye, evaluates, delivers feedback, and hands
// the recording to the archive workers.
func (h *WSHandler) finishVoice(ctx context.Context, vs *voiceSession) {
	_ = h.Sessions.SetStatus(ctx, vs.sessionID, "processing")
	_ = vs.wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventProcessing, Status: "start"})

	h.speak(ctx, vs, "Thank you for your time today. We'll review your responses and provide feedback shortly.")

	fb := vs.iv.Evaluate(ctx)
	h.saveResult(ctx, vs.userID, vs.jobID, vs.sessionID, vs.kind, "voice", vs.iv, fb, vs.log)

	_ = vs.wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeFeedback, Data: fb})

	if h.Redis != nil && vs.recorded.Len() > 0 {
		if err := workers.EnqueueRecording(ctx, h.Redis, vs.sessionID, vs.recorded.Bytes()); err != nil {
			vs.log.WithError(err).Warn("failed to enqueue recording for archive")
		}
	}

	if _, err := h.Sessions.End(ctx, vs.sessionID); err != nil {
		vs.log.WithError(err).Warn("failed to end session record")
	}
}
