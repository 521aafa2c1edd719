package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/agent"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/providers/llm"
	"github.com/careerflow/interview/internal/providers/stt"
	"github.com/careerflow/interview/internal/providers/tts"
	"github.com/careerflow/interview/internal/services"
	"github.com/careerflow/interview/internal/utils"
)

// WSHandler serves both interview session endpoints. One connection is one
// session; all interview state is local to the handler goroutine.
type WSHandler struct {
	Sessions    services.SessionService
	Interviews  services.InterviewService
	Transcripts services.TranscriptService
	Contexts    services.ContextService

	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider

	Redis  *redis.Client
	Logger *logrus.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.SessionService, interviews services.InterviewService,
	transcripts services.TranscriptService, contexts services.ContextService,
	llmp llm.Provider, sttp stt.Provider, ttsp tts.Provider,
	rdb *redis.Client, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		Sessions:    sessions,
		Interviews:  interviews,
		Transcripts: transcripts,
		Contexts:    contexts,
		LLM:         llmp,
		STT:         sttp,
		TTS:         ttsp,
		Redis:       rdb,
		Logger:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

// TextSession serves /ws/interview/text/:job_id.
func (h *WSHandler) TextSession(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	jobID := utils.NormalizeJobRef(c.Param("job_id"))
	log := h.Logger.WithFields(logrus.Fields{"mode": "text", "job_id": jobID})

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

	sessionID := h.openSession(ctx, userID, jobID, kind, "text", log)
	iv := agent.NewInterview(h.LLM, h.Logger, kind, *ictx)

	_ = wc.writeFrame(protocol.ServerFrame{
		Type:          protocol.TypeConfig,
		InterviewType: kind,
		JobTitle:      ictx.Job.Title,
		UserName:      ictx.User.Name,
	})

	// opening question
	if !h.textTurn(ctx, wc, iv, sessionID, userID, "", log) {
		h.finishText(ctx, wc, iv, sessionID, userID, jobID, kind, log)
		return
	}

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Info("client disconnected")
			h.abandonSession(ctx, sessionID)
			return
		}

		var msg protocol.ClientText
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError("invalid json")
			continue
		}
		userText := strings.TrimSpace(msg.Message)
		if userText == "" {
			continue
		}

		h.persistTurn(ctx, sessionID, userID, "user", userText, iv.Stage())
		if !h.textTurn(ctx, wc, iv, sessionID, userID, userText, log) {
			h.finishText(ctx, wc, iv, sessionID, userID, jobID, kind, log)
			return
		}
	}
}

// textTurn runs one interviewer turn and streams the thinking/stage/message
// frames. Returns false once the interview has ended.
func (h *WSHandler) textTurn(ctx context.Context, wc *wsConn, iv *agent.Interview,
	sessionID, userID, userText string, log *logrus.Entry) bool {

	_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventThinking, Status: "start"})
	reply, err := iv.Next(ctx, userText)
	_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventThinking, Status: "stop"})
	if err != nil {
		log.WithError(err).Error("interviewer turn failed")
		wc.writeError("The interviewer is unavailable. Please try again.")
		return true
	}

	_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventStageChange, Stage: iv.Stage()})
	_ = h.Sessions.AdvanceStage(ctx, sessionID, iv.Stage(), iv.Turn())

	if reply != "" {
		_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeMessage, Role: "assistant", Content: reply})
		h.persistTurn(ctx, sessionID, userID, "assistant", reply, iv.Stage())
	}
	return !iv.Ending()
}

// finishText evaluates the completed interview and delivers feedback.
func (h *WSHandler) finishText(ctx context.Context, wc *wsConn, iv *agent.Interview,
	sessionID, userID, jobID, kind string, log *logrus.Entry) {

	_ = h.Sessions.SetStatus(ctx, sessionID, "processing")
	_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeEvent, Event: protocol.EventProcessing, Status: "start"})

	fb := iv.Evaluate(ctx)
	h.saveResult(ctx, userID, jobID, sessionID, kind, "text", iv, fb, log)

	_ = wc.writeFrame(protocol.ServerFrame{Type: protocol.TypeFeedback, Data: fb})
	_ = wc.writeFrame(protocol.ServerFrame{
		Type: protocol.TypeMessage,
		Role: "assistant",
		Content: "**Interview Results**\n\n" + fb.Verdict +
			". Your interview score is " + strconv.Itoa(fb.Score) + " out of 100.\n\n" + fb.Summary,
	})

	if _, err := h.Sessions.End(ctx, sessionID); err != nil {
		log.WithError(err).Warn("failed to end session record")
	}
}

func (h *WSHandler) openSession(ctx context.Context, userID, jobID, kind, mode string, log *logrus.Entry) string {
	sess, err := h.Sessions.Start(ctx, userID, jobID, kind, mode)
	if err != nil {
		// session records are observability; the interview proceeds
		log.WithError(err).Warn("failed to create session record")
		return uuid.NewString()
	}
	return sess.SessionID
}

func (h *WSHandler) abandonSession(ctx context.Context, sessionID string) {
	if _, err := h.Sessions.End(ctx, sessionID); err != nil {
		h.Logger.WithError(err).Debug("failed to end abandoned session")
	}
}

func (h *WSHandler) persistTurn(ctx context.Context, sessionID, userID, role, content, stage string) {
	if h.Transcripts == nil {
		return
	}
	if _, err := h.Transcripts.Append(ctx, userID, sessionID, role, content, stage, nil, nil); err != nil {
		h.Logger.WithError(err).Debug("failed to persist transcript turn")
	}
}

func (h *WSHandler) saveResult(ctx context.Context, userID, jobID, sessionID, kind, mode string,
	iv *agent.Interview, fb *protocol.Feedback, log *logrus.Entry) {

	var jobRef *int64
	if n, ok := utils.JobRefInt(jobID); ok {
		jobRef = &n
	}
	if _, err := h.Interviews.SaveResult(ctx, userID, jobRef, sessionID, kind, mode, iv.Messages(), fb); err != nil {
		log.WithError(err).Error("failed to save interview result")
	} else {
		log.WithFields(logrus.Fields{"score": fb.Score, "verdict": fb.Verdict}).Info("interview saved")
	}
}
