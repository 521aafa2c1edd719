package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/careerflow/interview/internal/agent"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/providers/llm"
	"github.com/careerflow/interview/internal/services"
	"github.com/careerflow/interview/internal/utils"
)

// InterviewHandler serves the REST surface around completed interviews:
// history, transcripts, and the legacy stateless chat endpoint.
type InterviewHandler struct {
	Interviews  services.InterviewService
	Transcripts services.TranscriptService
	Contexts    services.ContextService
	LLM         llm.Provider
	Logger      *logrus.Logger

	mu    sync.Mutex
	chats map[string]*chatEntry
}

// chatTTL bounds how long an abandoned in-memory chat session survives
// before the next request sweeps it.
var chatTTL = 30 * time.Minute

type chatEntry struct {
	iv      *agent.Interview
	touched time.Time
}

func NewInterviewHandler(interviews services.InterviewService, transcripts services.TranscriptService,
	contexts services.ContextService, llmp llm.Provider, log *logrus.Logger) *InterviewHandler {
	if log == nil {
		log = logrus.New()
	}
	return &InterviewHandler{
		Interviews:  interviews,
		Transcripts: transcripts,
		Contexts:    contexts,
		LLM:         llmp,
		Logger:      log,
		chats:       make(map[string]*chatEntry),
	}
}

type historyItem struct {
	ID             string         `json:"id"`
	CreatedAt      string         `json:"created_at"`
	FeedbackReport datatypes.JSON `json:"feedback_report"`
	JobID          *int64         `json:"job_id"`
}

// History handles GET /api/interviews/:user_id. Callers may only read
// their own history.
func (h *InterviewHandler) History(c *gin.Context) {
	const op = "InterviewHandler.History"

	authID, ok := requireUserID(c)
	if !ok {
		return
	}
	userID := c.Param("user_id")
	if userID != authID {
		writeError(c, utils.E(utils.CodePermissionDenied, op, "cannot read another user's history", nil))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Interviews.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]historyItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, historyItem{
			ID:             r.ID,
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
			FeedbackReport: r.FeedbackReport,
			JobID:          r.JobID,
		})
	}
	c.JSON(http.StatusOK, items)
}

// Transcript handles GET /api/interviews/:user_id/transcript/:session_id.
func (h *InterviewHandler) Transcript(c *gin.Context) {
	const op = "InterviewHandler.Transcript"

	authID, ok := requireUserID(c)
	if !ok {
		return
	}
	userID := c.Param("user_id")
	if userID != authID {
		writeError(c, utils.E(utils.CodePermissionDenied, op, "cannot read another user's transcript", nil))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Transcripts.ListBySession(c.Request.Context(), userID, c.Param("session_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id"`
	Kind      string `json:"interview_type"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string             `json:"session_id"`
	Reply     string             `json:"reply,omitempty"`
	Stage     string             `json:"stage"`
	Ended     bool               `json:"ended"`
	Feedback  *protocol.Feedback `json:"feedback,omitempty"`
}

// Chat handles POST /api/interview/chat, a polling alternative to the
// socket endpoints. Sessions live in process memory and are dropped on
// restart; clients that need durability use the socket paths.
func (h *InterviewHandler) Chat(c *gin.Context) {
	const op = "InterviewHandler.Chat"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	iv, sessionID, err := h.chatSession(c, userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	reply, err := iv.Next(c.Request.Context(), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := chatResponse{SessionID: sessionID, Reply: reply, Stage: iv.Stage(), Ended: iv.Ending()}
	if iv.Ending() {
		resp.Feedback = iv.Evaluate(c.Request.Context())
		h.mu.Lock()
		delete(h.chats, sessionID)
		h.mu.Unlock()
	}
	c.JSON(http.StatusOK, resp)
}

// chatSession resumes an in-memory interview or starts a new one.
func (h *InterviewHandler) chatSession(c *gin.Context, userID string, req *chatRequest) (*agent.Interview, string, error) {
	const op = "InterviewHandler.chatSession"

	now := time.Now()
	if req.SessionID != "" {
		h.mu.Lock()
		h.sweepChatsLocked(now)
		entry, found := h.chats[req.SessionID]
		if found {
			entry.touched = now
		}
		h.mu.Unlock()
		if !found {
			return nil, "", utils.E(utils.CodeNotFound, op, "unknown or expired chat session", nil)
		}
		return entry.iv, req.SessionID, nil
	}

	jobID := utils.NormalizeJobRef(req.JobID)
	ictx, err := h.Contexts.Fetch(c.Request.Context(), userID, jobID)
	if err != nil {
		return nil, "", err
	}

	kind := req.Kind
	if kind != protocol.KindBehavioral {
		kind = protocol.KindTechnical
	}

	sessionID := uuid.NewString()
	iv := agent.NewInterview(h.LLM, h.Logger, kind, *ictx)
	h.mu.Lock()
	h.sweepChatsLocked(now)
	h.chats[sessionID] = &chatEntry{iv: iv, touched: now}
	h.mu.Unlock()
	return iv, sessionID, nil
}

// sweepChatsLocked drops sessions idle longer than chatTTL. Caller holds
// h.mu.
func (h *InterviewHandler) sweepChatsLocked(now time.Time) {
	for id, entry := range h.chats {
		if now.Sub(entry.touched) > chatTTL {
			delete(h.chats, id)
		}
	}
}
