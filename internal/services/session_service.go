package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careerflow/interview/internal/models"
	mongorepo "github.com/careerflow/interview/internal/repositories/mongo"
	"github.com/careerflow/interview/internal/utils"
)

type SessionService interface {
	Start(ctx context.Context, userID, jobID, kind, mode string) (*models.InterviewSession, error)
	Get(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	AdvanceStage(ctx context.Context, sessionID, stage string, turns int) error
	SetStatus(ctx context.Context, sessionID, status string) error
	SetRecordingURL(ctx context.Context, sessionID, url string) error
	End(ctx context.Context, sessionID string) (*models.InterviewSession, error)
}

type sessionService struct {
	sessions mongorepo.SessionRepository
}

func NewSessionService(sessions mongorepo.SessionRepository) SessionService {
	return &sessionService{sessions: sessions}
}

func (s *sessionService) Start(ctx context.Context, userID, jobID, kind, mode string) (*models.InterviewSession, error) {
	const op = "SessionService.Start"

	if userID == "" || jobID == "" || kind == "" || mode == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, job_id, kind, and mode are required", nil)
	}

	now := time.Now().UTC()
	session := &models.InterviewSession{
		SessionID: uuid.NewString(),
		UserID:    userID,
		JobID:     jobID,
		Kind:      kind,
		Mode:      mode,
		Stage:     "intro",
		Status:    "active",
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) AdvanceStage(ctx context.Context, sessionID, stage string, turns int) error {
	const op = "SessionService.AdvanceStage"

	if sessionID == "" || stage == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and stage are required", nil)
	}
	if err := s.sessions.SetStage(ctx, sessionID, stage, turns); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set stage", err)
	}
	return nil
}

func (s *sessionService) SetStatus(ctx context.Context, sessionID, status string) error {
	const op = "SessionService.SetStatus"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	return nil
}

func (s *sessionService) SetRecordingURL(ctx context.Context, sessionID, url string) error {
	const op = "SessionService.SetRecordingURL"

	if sessionID == "" || url == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and url are required", nil)
	}
	if err := s.sessions.SetRecordingURL(ctx, sessionID, url); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set recording url", err)
	}
	return nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "SessionService.End"

	ss, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dur := int64(now.Sub(ss.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}

	ss.Status = "ended"
	ss.EndedAt = &now
	ss.DurationSeconds = dur
	return ss, nil
}
