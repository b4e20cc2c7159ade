package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserQuestionHistory aggregates a user's attempts at one question over all sessions.
type UserQuestionHistory struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_user_question_history"`
	QuestionID      uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_user_question_history"`
	Category        string    `json:"category" gorm:"size:100;index"`
	TotalAttempts   int       `json:"total_attempts" gorm:"not null;default:0"`
	CorrectAttempts int       `json:"correct_attempts" gorm:"not null;default:0"`
	LastAttemptAt   time.Time `json:"last_attempt_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProctoringEvent struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	SessionID  uint           `json:"session_id" gorm:"not null;index"`
	UserID     string         `json:"user_id" gorm:"not null;size:255"`
	Type       string         `json:"type" gorm:"not null;size:50;index"`
	Details    datatypes.JSON `json:"details" gorm:"type:jsonb"`
	OccurredAt time.Time      `json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AutoMigrateModels lists the tables owned by this service in migration order.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&Question{},
		&QuestionOption{},
		&QuizSession{},
		&SessionQuestion{},
		&SessionAnswer{},
		&ProctoringEvent{},
		&UserQuestionHistory{},
	}
}
