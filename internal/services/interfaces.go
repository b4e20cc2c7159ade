package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/validator"
)

// Use business validator types
type StartSessionRequest = validator.StartSessionRequest
type SubmitAnswerRequest = validator.SubmitAnswerRequest
type ProctoringEventRequest = validator.ProctoringEventRequest
type ClassifyAnswerRequest = validator.ClassifyAnswerRequest
type CreateQuestionRequest = validator.CreateQuestionRequest

// SessionQuestionView is a question as shown to the player. Correctness flags are
// withheld until the session is completed.
type SessionQuestionView struct {
	QuestionID uint     `json:"question_id"`
	Position   int      `json:"position"`
	Text       string   `json:"text"`
	Category   string   `json:"category"`
	TopicName  *string  `json:"topic_name,omitempty"`
	Difficulty string   `json:"difficulty"`
	Options    []string `json:"options"`

	CorrectAnswer *string `json:"correct_answer,omitempty"`
	Explanation   *string `json:"explanation,omitempty"`
}

type SessionResponse struct {
	ID          uint                  `json:"id"`
	PublicID    string                `json:"public_id"`
	UserID      string                `json:"user_id"`
	Status      models.SessionStatus  `json:"status"`
	Category    *string               `json:"category,omitempty"`
	Difficulty  *string               `json:"difficulty,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Questions   []SessionQuestionView `json:"questions"`
	Answered    []uint                `json:"answered_question_ids"`
	Score       *analytics.Score      `json:"score,omitempty"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type SessionSummary struct {
	ID          uint                 `json:"id"`
	PublicID    string               `json:"public_id"`
	Status      models.SessionStatus `json:"status"`
	Category    *string              `json:"category,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Score       analytics.Score      `json:"score"`
}

type AnswerResponse struct {
	QuestionID uint      `json:"question_id"`
	Accepted   bool      `json:"accepted"`
	AnsweredAt time.Time `json:"answered_at"`
	Answered   int       `json:"answered"`
	Remaining  int       `json:"remaining"`
}

type ProctoringResponse struct {
	EventID uint                        `json:"event_id"`
	Summary analytics.ProctoringSummary `json:"summary"`
}

type ClassifyAnswerResponse struct {
	QuestionID    uint                  `json:"question_id"`
	IsCorrect     bool                  `json:"is_correct"`
	MistakeType   analytics.MistakeType `json:"mistake_type,omitempty"`
	CorrectAnswer string                `json:"correct_answer"`
	AverageTime   float64               `json:"average_time"`
}

// ===== SERVICE INTERFACES =====

type SessionService interface {
	Start(ctx context.Context, userID string, req *StartSessionRequest) (*SessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID uint, req *SubmitAnswerRequest, userID string) (*AnswerResponse, error)
	RecordProctoringEvent(ctx context.Context, sessionID uint, req *ProctoringEventRequest, userID string) (*ProctoringResponse, error)
	Complete(ctx context.Context, sessionID uint, userID string) (*models.SessionAnalytics, error)

	GetSession(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error)
	GetAnalytics(ctx context.Context, sessionID uint, userID string) (*models.SessionAnalytics, error)
	ListSessions(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionListResponse, error)
}

type MistakeService interface {
	GetPatternReport(ctx context.Context, userID string) (*analytics.PatternReport, error)
	GetRemediationPlan(ctx context.Context, userID string) (*analytics.RemediationPlan, error)
	GetMistakeFrequency(ctx context.Context, userID string) ([]analytics.MistakeFrequency, error)
	GetSystematicErrors(ctx context.Context, userID string) ([]analytics.SystematicError, error)
	// ClassifyAnswer refuses questions that sit in one of userID's active sessions
	ClassifyAnswer(ctx context.Context, userID string, req *ClassifyAnswerRequest) (*ClassifyAnswerResponse, error)

	// InvalidateUser drops cached reports of userID
	InvalidateUser(ctx context.Context, userID string)
	HandleSessionCompleted(ctx context.Context, event *events.Event) error
}

type QuestionService interface {
	Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*models.Question, error)
	GetByID(ctx context.Context, id uint) (*models.Question, error)
}

type ExportService interface {
	ExportSessionAnalytics(ctx context.Context, sessionID uint, userID string) ([]byte, string, error)
	ExportMistakeReport(ctx context.Context, userID string) ([]byte, string, error)
}

type ServiceManager interface {
	Session() SessionService
	Mistake() MistakeService
	Question() QuestionService
	Export() ExportService
	Dashboard() DashboardService

	Initialize(ctx context.Context) error
	RegisterEventHandlers(consumer *events.Consumer)
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
