package models

import (
	"time"

	"gorm.io/datatypes"
)

// Interview is the durable record of a completed interview: the full chat
// history and the feedback report, queryable as interview history.
type Interview struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	JobID     *int64 `gorm:"column:job_id;index" json:"job_id,omitempty"`
	SessionID string `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Kind      string `gorm:"column:kind;type:text" json:"kind"` // TECHNICAL|HR
	Mode      string `gorm:"column:mode;type:text" json:"mode"` // voice|text

	ChatHistory    datatypes.JSON `gorm:"column:chat_history;type:jsonb" json:"chat_history"`
	FeedbackReport datatypes.JSON `gorm:"column:feedback_report;type:jsonb" json:"feedback_report"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Interview) TableName() string { return "interviews" }
