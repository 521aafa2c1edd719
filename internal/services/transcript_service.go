package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/careerflow/interview/internal/models"
	pgrepo "github.com/careerflow/interview/internal/repositories/postgres"
	"github.com/careerflow/interview/internal/utils"
)

type TranscriptService interface {
	Append(ctx context.Context, userID, sessionID, role, content, stage string, embedding []float32, metadataJSON []byte) (*models.TranscriptLog, error)
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error)
}

type transcriptService struct {
	logs pgrepo.TranscriptRepo
}

func NewTranscriptService(logs pgrepo.TranscriptRepo) TranscriptService {
	return &transcriptService{logs: logs}
}

func (s *transcriptService) Append(ctx context.Context, userID, sessionID, role, content, stage string, embedding []float32, metadataJSON []byte) (*models.TranscriptLog, error) {
	const op = "TranscriptService.Append"

	if userID == "" || sessionID == "" || role == "" || content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, session_id, role, and content are required", nil)
	}

	row := &models.TranscriptLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Metadata:  datatypes.JSON(metadataJSON),
	}
	if len(embedding) > 0 {
		row.Embedding = pgvector.NewVector(embedding)
	}

	if err := s.logs.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert transcript log", err)
	}
	return row, nil
}

func (s *transcriptService) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error) {
	const op = "TranscriptService.ListBySession"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}

	rows, err := s.logs.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript logs", err)
	}
	return rows, nil
}
