package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
)

// ErrNotFound is returned by repositories that do not surface gorm errors.
var ErrNotFound = errors.New("record not found")

func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	Status    *models.SessionStatus `json:"status"`
	Category  *string               `json:"category"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "started_at", "completed_at", "percentage"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

type RandomQuestionFilters struct {
	Category   *string                 `json:"category"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	Count      int                     `json:"count"`
}

// QuestionTiming is the mean answer time of a question over all users.
type QuestionTiming struct {
	QuestionID  uint    `json:"question_id"`
	AverageTime float64 `json:"average_time"`
}

// AnswerOutcome is one graded answer, used to feed history upserts.
type AnswerOutcome struct {
	QuestionID uint
	Category   string
	IsCorrect  bool
	AnsweredAt time.Time
}

// ===== REPOSITORIES =====

type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error)
	GetWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error)
	// LockForUpdate loads the session row with SELECT ... FOR UPDATE inside tx.
	LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters SessionFilters) ([]*models.QuizSession, int64, error)
	CountActive(ctx context.Context, tx *gorm.DB, userID string) (int64, error)

	AddQuestions(ctx context.Context, tx *gorm.DB, questions []models.SessionQuestion) error
	SaveAnswer(ctx context.Context, tx *gorm.DB, answer *models.SessionAnswer) error
	HasAnswer(ctx context.Context, tx *gorm.DB, sessionID, questionID uint) (bool, error)
	// ListAnswersByUser skips answers of sessions that are still active.
	ListAnswersByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.SessionAnswer, error)
	AverageTimeByQuestion(ctx context.Context, tx *gorm.DB, questionIDs []uint) (map[uint]float64, error)

	// Complete writes score columns, analytics and status in one update.
	Complete(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	Random(ctx context.Context, tx *gorm.DB, filters RandomQuestionFilters) ([]*models.Question, error)
}

type HistoryRepository interface {
	// Upsert adds one attempt per outcome to the (user, question) counters.
	Upsert(ctx context.Context, tx *gorm.DB, userID string, outcomes []AnswerOutcome) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserQuestionHistory, error)
}

type ProctoringRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.ProctoringEvent) error
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uint) ([]*models.ProctoringEvent, error)
	CountBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (int64, error)
}
