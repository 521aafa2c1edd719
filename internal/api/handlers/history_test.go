package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/careerflow/interview/internal/agent"
	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/services"
)

type fakeInterviews struct {
	rows []models.Interview
}

func (f *fakeInterviews) SaveResult(_ context.Context, userID string, jobID *int64, sessionID, kind, mode string,
	_ []agent.Message, _ *protocol.Feedback) (*models.Interview, error) {
	row := models.Interview{ID: sessionID, UserID: userID, JobID: jobID, SessionID: sessionID, Kind: kind, Mode: mode}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeInterviews) History(_ context.Context, userID string, _ int) ([]models.Interview, error) {
	var out []models.Interview
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTranscripts struct {
	rows []models.TranscriptLog
}

func (f *fakeTranscripts) Append(_ context.Context, userID, sessionID, role, content, stage string,
	_ []float32, _ []byte) (*models.TranscriptLog, error) {
	row := models.TranscriptLog{UserID: userID, SessionID: sessionID, Role: role, Content: content, Stage: stage}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeTranscripts) ListBySession(_ context.Context, userID, sessionID string, _ int) ([]models.TranscriptLog, error) {
	var out []models.TranscriptLog
	for _, r := range f.rows {
		if r.UserID == userID && r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type scriptedLLM struct{ reply string }

func (s *scriptedLLM) Complete(context.Context, string) (string, error) { return s.reply, nil }
func (s *scriptedLLM) Close() error                                     { return nil }

func testContexts() services.ContextService {
	return services.NewContextService(services.ContextLoaderFunc(
		func(_ context.Context, _, _ string) (*models.InterviewContext, error) {
			return &models.InterviewContext{
				Job:  models.JobInfo{Title: "Backend Engineer"},
				User: models.CandidateInfo{Name: "Sam"},
			}, nil
		}), nil)
}

func authAs(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

func newHistoryRouter(h *InterviewHandler, authUser string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", authAs(authUser))
	api.GET("/interviews/:user_id", h.History)
	api.GET("/interviews/:user_id/transcript/:session_id", h.Transcript)
	api.POST("/interview/chat", h.Chat)
	return r
}

func TestHistoryReturnsOwnRows(t *testing.T) {
	job := int64(7)
	interviews := &fakeInterviews{rows: []models.Interview{
		{ID: "i-1", UserID: "u-1", JobID: &job, CreatedAt: time.Now(),
			FeedbackReport: datatypes.JSON(`{"score":72,"verdict":"Hired"}`)},
		{ID: "i-2", UserID: "u-2"},
	}}
	h := NewInterviewHandler(interviews, &fakeTranscripts{}, testContexts(), &scriptedLLM{}, nil)
	r := newHistoryRouter(h, "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/interviews/u-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "i-1", items[0]["id"])
	assert.EqualValues(t, 7, items[0]["job_id"])

	report, ok := items[0]["feedback_report"].(map[string]any)
	require.True(t, ok, "feedback_report must pass through as an object")
	assert.EqualValues(t, 72, report["score"])
}

func TestHistoryRejectsOtherUsers(t *testing.T) {
	h := NewInterviewHandler(&fakeInterviews{}, &fakeTranscripts{}, testContexts(), &scriptedLLM{}, nil)
	r := newHistoryRouter(h, "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/interviews/u-2", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHistoryRequiresAuth(t *testing.T) {
	h := NewInterviewHandler(&fakeInterviews{}, &fakeTranscripts{}, testContexts(), &scriptedLLM{}, nil)
	r := newHistoryRouter(h, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/interviews/u-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTranscriptListsSessionTurns(t *testing.T) {
	transcripts := &fakeTranscripts{rows: []models.TranscriptLog{
		{UserID: "u-1", SessionID: "s-1", Role: "assistant", Content: "Welcome."},
		{UserID: "u-1", SessionID: "s-1", Role: "user", Content: "Hello."},
		{UserID: "u-1", SessionID: "s-2", Role: "assistant", Content: "Other session."},
	}}
	h := NewInterviewHandler(&fakeInterviews{}, transcripts, testContexts(), &scriptedLLM{}, nil)
	r := newHistoryRouter(h, "u-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/interviews/u-1/transcript/s-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.TranscriptLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)
}

func postChat(t *testing.T, r *gin.Engine, body any) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/interview/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp chatResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestChatStartsAndResumesSession(t *testing.T) {
	h := NewInterviewHandler(&fakeInterviews{}, &fakeTranscripts{}, testContexts(),
		&scriptedLLM{reply: "Tell me about yourself."}, nil)
	r := newHistoryRouter(h, "u-1")

	w, first := postChat(t, r, chatRequest{JobID: "7", Kind: "TECHNICAL"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, "Tell me about yourself.", first.Reply)
	assert.Equal(t, protocol.StageIntro, first.Stage)
	assert.False(t, first.Ended)

	w, second := postChat(t, r, chatRequest{SessionID: first.SessionID, Message: "I build Go services."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.NotEmpty(t, second.Reply)
}

func TestChatUnknownSession(t *testing.T) {
	h := NewInterviewHandler(&fakeInterviews{}, &fakeTranscripts{}, testContexts(), &scriptedLLM{}, nil)
	r := newHistoryRouter(h, "u-1")

	w, _ := postChat(t, r, chatRequest{SessionID: "nope", Message: "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatSweepsIdleSessions(t *testing.T) {
	h := NewInterviewHandler(&fakeInterviews{}, &fakeTranscripts{}, testContexts(),
		&scriptedLLM{reply: "Tell me about yourself."}, nil)
	r := newHistoryRouter(h, "u-1")

	w, first := postChat(t, r, chatRequest{JobID: "7", Kind: "TECHNICAL"})
	require.Equal(t, http.StatusOK, w.Code)

	// age the session past the TTL; the next request must sweep it
	h.mu.Lock()
	h.chats[first.SessionID].touched = time.Now().Add(-chatTTL - time.Minute)
	h.mu.Unlock()

	w, _ = postChat(t, r, chatRequest{SessionID: first.SessionID, Message: "still there?"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	h.mu.Lock()
	assert.Empty(t, h.chats)
	h.mu.Unlock()
}
