package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

type HistoryPostgreSQL struct {
	db *gorm.DB
}

func NewHistoryPostgreSQL(db *gorm.DB) repositories.HistoryRepository {
	return &HistoryPostgreSQL{db: db}
}

func (h *HistoryPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return h.db
}

func (h *HistoryPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, userID string, outcomes []repositories.AnswerOutcome) error {
	db := h.getDB(tx)

	for _, outcome := range outcomes {
		correct := 0
		if outcome.IsCorrect {
			correct = 1
		}

		row := models.UserQuestionHistory{
			UserID:          userID,
			QuestionID:      outcome.QuestionID,
			Category:        outcome.Category,
			TotalAttempts:   1,
			CorrectAttempts: correct,
			LastAttemptAt:   outcome.AnsweredAt,
		}

		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_attempts":   gorm.Expr("user_question_histories.total_attempts + 1"),
				"correct_attempts": gorm.Expr("user_question_histories.correct_attempts + ?", correct),
				"category":         outcome.Category,
				"last_attempt_at":  outcome.AnsweredAt,
				"updated_at":       gorm.Expr("NOW()"),
			}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert history for question %d: %w", outcome.QuestionID, err)
		}
	}

	return nil
}

func (h *HistoryPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserQuestionHistory, error) {
	db := h.getDB(tx)
	var rows []*models.UserQuestionHistory
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("question_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return rows, nil
}
