package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	db := s.getDB(tx)
	var session models.QuizSession
	if err := db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	db := s.getDB(tx)
	var session models.QuizSession
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answered_at ASC")
		}).
		Preload("ProctoringEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	db := s.getDB(tx)
	var session models.QuizSession
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.SessionFilters) ([]*models.QuizSession, int64, error) {
	db := s.getDB(tx)
	var sessions []*models.QuizSession
	var total int64

	query := db.WithContext(ctx).Model(&models.QuizSession{}).Where("user_id = ?", userID)
	query = ApplySessionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query = ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Omit("analytics").Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, total, nil
}

func (s *SessionPostgreSQL) CountActive(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	db := s.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("user_id = ? AND status = ?", userID, models.SessionActive).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

func (s *SessionPostgreSQL) AddQuestions(ctx context.Context, tx *gorm.DB, questions []models.SessionQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit("Question").Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to add session questions: %w", err)
	}
	return nil
}

// SaveAnswer inserts the answer; a second answer to the same question is ignored.
func (s *SessionPostgreSQL) SaveAnswer(ctx context.Context, tx *gorm.DB, answer *models.SessionAnswer) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoNothing: true,
		}).
		Create(answer).Error; err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) HasAnswer(ctx context.Context, tx *gorm.DB, sessionID, questionID uint) (bool, error) {
	db := s.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.SessionAnswer{}).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check answer: %w", err)
	}
	return count > 0, nil
}

// ListAnswersByUser returns the answers userID gave in completed sessions only.
func (s *SessionPostgreSQL) ListAnswersByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.SessionAnswer, error) {
	db := s.getDB(tx)
	var answers []*models.SessionAnswer
	if err := db.WithContext(ctx).
		Joins("JOIN quiz_sessions ON quiz_sessions.id = session_answers.session_id").
		Where("session_answers.user_id = ? AND quiz_sessions.status = ?", userID, models.SessionCompleted).
		Order("session_answers.answered_at ASC, session_answers.id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

func (s *SessionPostgreSQL) AverageTimeByQuestion(ctx context.Context, tx *gorm.DB, questionIDs []uint) (map[uint]float64, error) {
	result := make(map[uint]float64, len(questionIDs))
	if len(questionIDs) == 0 {
		return result, nil
	}

	db := s.getDB(tx)
	var rows []repositories.QuestionTiming
	if err := db.WithContext(ctx).
		Model(&models.SessionAnswer{}).
		Select("question_id, AVG(time_spent) AS average_time").
		Where("question_id IN ? AND time_spent > 0", questionIDs).
		Group("question_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get average time by question: %w", err)
	}

	for _, row := range rows {
		result[row.QuestionID] = row.AverageTime
	}
	return result, nil
}

func (s *SessionPostgreSQL) Complete(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error {
	db := s.getDB(tx)
	res := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionActive).
		Updates(map[string]interface{}{
			"status":            models.SessionCompleted,
			"completed_at":      session.CompletedAt,
			"total_questions":   session.TotalQuestions,
			"correct_answers":   session.CorrectAnswers,
			"incorrect_answers": session.IncorrectAnswers,
			"percentage":        session.Percentage,
			"analytics":         session.Analytics,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
