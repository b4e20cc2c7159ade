package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== DASHBOARD STATS =====

func (r *dashboardRepository) GetTotalSessions(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get total sessions: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetCompletedSessions(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("status = ?", models.SessionCompleted).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get completed sessions: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetTotalQuestions(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get total questions: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetActiveUsers(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	db := r.getDB(tx)
	var count int64

	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("started_at >= ?", since).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get active users: %w", err)
	}

	return count, nil
}

// ===== METRICS =====

func (r *dashboardRepository) GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error) {
	db := r.getDB(tx)

	var result struct {
		AvgScore *float64
	}

	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("status = ?", models.SessionCompleted).
		Select("AVG(percentage) AS avg_score").
		Scan(&result).Error; err != nil {
		return 0, fmt.Errorf("failed to get average score: %w", err)
	}

	if result.AvgScore == nil {
		return 0, nil
	}
	return *result.AvgScore, nil
}

func (r *dashboardRepository) GetPerformanceByCategory(ctx context.Context, tx *gorm.DB, limit int) ([]repositories.CategoryPerformanceData, error) {
	db := r.getDB(tx)

	var rows []repositories.CategoryPerformanceData
	query := db.WithContext(ctx).
		Model(&models.SessionAnswer{}).
		Select(`COALESCE(NULLIF(category, ''), 'Uncategorized') AS category,
			COUNT(*) AS total_answers,
			SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) AS correct_answers,
			AVG(CASE WHEN is_correct THEN 100.0 ELSE 0 END) AS accuracy`).
		Group("1").
		Order("total_answers DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get performance by category: %w", err)
	}

	return rows, nil
}

// ===== TRENDS =====

func (r *dashboardRepository) GetActivityTrends(ctx context.Context, tx *gorm.DB, since time.Time) ([]repositories.ActivityTrendData, error) {
	db := r.getDB(tx)

	var rows []repositories.ActivityTrendData
	if err := db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Select(`DATE_TRUNC('day', started_at) AS date,
			COUNT(*) AS sessions,
			COUNT(DISTINCT user_id) AS users,
			COALESCE(AVG(CASE WHEN status = ? THEN percentage END), 0) AS average_score`, models.SessionCompleted).
		Where("started_at >= ?", since).
		Group("1").
		Order("1 ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get activity trends: %w", err)
	}

	return rows, nil
}
