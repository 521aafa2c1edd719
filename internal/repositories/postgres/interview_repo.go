package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/utils"
)

type InterviewRepo interface {
	Insert(ctx context.Context, iv *models.Interview) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error)
	GetByID(ctx context.Context, id string) (*models.Interview, error)
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepo {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) Insert(ctx context.Context, iv *models.Interview) error {
	return r.db.WithContext(ctx).Create(iv).Error
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.Interview
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var row models.Interview
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
