package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/utils"
)

// sessionTTL keeps ended sessions around briefly for inspection; the TTL
// index on expires_at reaps them.
const sessionTTL = 24 * time.Hour

type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	SetStage(ctx context.Context, sessionID, stage string, turns int) error
	SetStatus(ctx context.Context, sessionID, status string) error
	SetRecordingURL(ctx context.Context, sessionID, url string) error
	End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("interview_sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(sessionTTL)
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) SetStage(ctx context.Context, sessionID, stage string, turns int) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"stage": stage, "turns": turns}},
	)
	return err
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

func (r *sessionRepo) SetRecordingURL(ctx context.Context, sessionID, url string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"recording_url": url}},
	)
	return err
}

func (r *sessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"status":           "ended",
			"ended_at":         endedAt.UTC(),
			"duration_seconds": durationSeconds,
		}},
	)
	return err
}
