package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/careerflow/interview/internal/models"
)

type TranscriptRepo interface {
	Insert(ctx context.Context, log *models.TranscriptLog) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepo {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Insert(ctx context.Context, log *models.TranscriptLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *transcriptRepo) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.TranscriptLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
