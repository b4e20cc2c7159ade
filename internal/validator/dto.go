package validator

import "time"

type StartSessionRequest struct {
	Category      *string `json:"category" validate:"omitempty,min=1,max=100"`
	Difficulty    *string `json:"difficulty" validate:"omitempty,difficulty_level"`
	QuestionCount int     `json:"question_count" validate:"required,min=1,max=100"`
}

// SubmitAnswerRequest carries no correctness flag; correctness is always recomputed.
type SubmitAnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	UserAnswer string `json:"user_answer" validate:"required,max=2000"`
	TimeSpent  int64  `json:"time_spent" validate:"min=0,max=86400000"` // milliseconds
}

type ProctoringEventRequest struct {
	Type       string                 `json:"type" validate:"required,proctoring_event_type"`
	OccurredAt *time.Time             `json:"occurred_at"`
	Details    map[string]interface{} `json:"details"`
}

type ClassifyAnswerRequest struct {
	QuestionID  uint     `json:"question_id" validate:"required"`
	UserAnswer  string   `json:"user_answer" validate:"required,max=2000"`
	TimeSpent   int64    `json:"time_spent" validate:"min=0"`
	AverageTime *float64 `json:"average_time" validate:"omitempty,min=0"`
}

type CreateQuestionRequest struct {
	Text        string                  `json:"text" validate:"required,min=1,max=5000"`
	Category    string                  `json:"category" validate:"required,max=100"`
	TopicName   *string                 `json:"topic_name" validate:"omitempty,max=100"`
	Difficulty  string                  `json:"difficulty" validate:"required,difficulty_level"`
	Explanation *string                 `json:"explanation" validate:"omitempty,max=5000"`
	Options     []QuestionOptionRequest `json:"options" validate:"required,min=2,max=10,dive"`
}

type QuestionOptionRequest struct {
	Text      string `json:"text" validate:"required,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}
