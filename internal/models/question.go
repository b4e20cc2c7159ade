package models

import (
	"time"
)

type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

type Question struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Text       string          `json:"text" gorm:"type:text;not null"`
	Category   string          `json:"category" gorm:"size:100;index"`
	TopicName  *string         `json:"topic_name" gorm:"size:100"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"size:20;default:intermediate;index"`

	Explanation *string   `json:"explanation" gorm:"type:text"`
	CreatedBy   string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Options []QuestionOption `json:"options" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

// QuestionOption is an answer choice. Position is the zero-based index the option is
// shown at; option distance for mistake classification is measured on it.
type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null"`
	Text       string `json:"text" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct"`
}

// CorrectOption returns the first option flagged correct.
func (q *Question) CorrectOption() *QuestionOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}
