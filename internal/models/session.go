package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InterviewSession is the live session record, kept in MongoDB for the
// duration of a connection (plus a TTL window for debugging).
type InterviewSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`       // uuid from Supabase Auth
	JobID     string             `bson:"job_id" json:"job_id"`

	Kind   string `bson:"kind" json:"kind"`     // TECHNICAL|HR
	Mode   string `bson:"mode" json:"mode"`     // voice|text
	Stage  string `bson:"stage" json:"stage"`   // intro|resume|gap_challenge|conclusion|end
	Status string `bson:"status" json:"status"` // active|processing|ended
	Turns  int    `bson:"turns" json:"turns"`

	RecordingURL string `bson:"recording_url,omitempty" json:"recording_url,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"` // TTL index

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}
