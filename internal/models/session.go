package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

type QuizSession struct {
	ID       uint          `json:"id" gorm:"primaryKey"`
	PublicID string        `json:"public_id" gorm:"uniqueIndex;size:36;not null"`
	UserID   string        `json:"user_id" gorm:"not null;index;size:255"`
	Status   SessionStatus `json:"status" gorm:"default:active;index;size:20"`

	// Selection filters the session was started with
	Category   *string `json:"category" gorm:"size:100"`
	Difficulty *string `json:"difficulty" gorm:"size:20"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Scoring
	TotalQuestions   int `json:"total_questions"`
	CorrectAnswers   int `json:"correct_answers"`
	IncorrectAnswers int `json:"incorrect_answers"`
	Percentage       int `json:"percentage"`

	// Generated once on completion, see SessionAnalytics
	Analytics datatypes.JSON `json:"analytics" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions        []SessionQuestion `json:"questions,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Answers          []SessionAnswer   `json:"answers,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	ProctoringEvents []ProctoringEvent `json:"proctoring_events,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (s *QuizSession) IsCompleted() bool {
	return s.Status == SessionCompleted
}

// ApplyScore copies a score summary onto the session columns.
func (s *QuizSession) ApplyScore(score analytics.Score) {
	s.TotalQuestions = score.Total
	s.CorrectAnswers = score.Correct
	s.IncorrectAnswers = score.Incorrect
	s.Percentage = score.Percentage
}

func (s *QuizSession) Score() analytics.Score {
	return analytics.Score{
		Total:      s.TotalQuestions,
		Correct:    s.CorrectAnswers,
		Incorrect:  s.IncorrectAnswers,
		Percentage: s.Percentage,
	}
}

// DecodeAnalytics returns the stored analytics document, or nil when the session has
// not been completed yet.
func (s *QuizSession) DecodeAnalytics() (*SessionAnalytics, error) {
	if len(s.Analytics) == 0 {
		return nil, nil
	}
	var doc SessionAnalytics
	if err := json.Unmarshal(s.Analytics, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SessionQuestion pins a bank question to its position in a session.
type SessionQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	SessionID  uint `json:"session_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`
	Position   int  `json:"position" gorm:"not null"`

	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

// SessionAnswer is the answer record of one question within a session. Category, topic
// and difficulty are copied from the question when the answer arrives.
type SessionAnswer struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	SessionID  uint   `json:"session_id" gorm:"not null;uniqueIndex:idx_session_answer_question"`
	QuestionID uint   `json:"question_id" gorm:"not null;uniqueIndex:idx_session_answer_question;index"`
	UserID     string `json:"user_id" gorm:"not null;index;size:255"`

	Category   string  `json:"category" gorm:"size:100"`
	TopicName  *string `json:"topic_name" gorm:"size:100"`
	Difficulty string  `json:"difficulty" gorm:"size:20"`

	UserAnswer string    `json:"user_answer" gorm:"type:text"`
	IsCorrect  bool      `json:"is_correct"`
	TimeSpent  int64     `json:"time_spent"` // milliseconds
	AnsweredAt time.Time `json:"answered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionAnalytics is the document persisted in QuizSession.Analytics.
type SessionAnalytics struct {
	analytics.Summary
	Score       analytics.Score             `json:"score"`
	Timing      analytics.TimingSummary     `json:"timing"`
	Proctoring  analytics.ProctoringSummary `json:"proctoring"`
	GeneratedAt time.Time                   `json:"generated_at"`
}
