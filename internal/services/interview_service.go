package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/careerflow/interview/internal/agent"
	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/protocol"
	pgrepo "github.com/careerflow/interview/internal/repositories/postgres"
	"github.com/careerflow/interview/internal/utils"
)

type InterviewService interface {
	// SaveResult persists a completed interview: chat history and feedback
	// report, keyed by user and (optionally) job.
	SaveResult(ctx context.Context, userID string, jobID *int64, sessionID, kind, mode string,
		history []agent.Message, fb *protocol.Feedback) (*models.Interview, error)
	History(ctx context.Context, userID string, limit int) ([]models.Interview, error)
}

type interviewService struct {
	interviews pgrepo.InterviewRepo
}

func NewInterviewService(interviews pgrepo.InterviewRepo) InterviewService {
	return &interviewService{interviews: interviews}
}

func (s *interviewService) SaveResult(ctx context.Context, userID string, jobID *int64, sessionID, kind, mode string,
	history []agent.Message, fb *protocol.Feedback) (*models.Interview, error) {
	const op = "InterviewService.SaveResult"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}
	if fb == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "feedback is required", nil)
	}

	chatJSON, err := json.Marshal(history)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode chat history", err)
	}
	fbJSON, err := json.Marshal(fb)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode feedback", err)
	}

	row := &models.Interview{
		ID:             uuid.NewString(),
		UserID:         userID,
		JobID:          jobID,
		SessionID:      sessionID,
		Kind:           kind,
		Mode:           mode,
		ChatHistory:    datatypes.JSON(chatJSON),
		FeedbackReport: datatypes.JSON(fbJSON),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.interviews.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save interview", err)
	}
	return row, nil
}

func (s *interviewService) History(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	const op = "InterviewService.History"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	rows, err := s.interviews.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list interviews", err)
	}
	return rows, nil
}
