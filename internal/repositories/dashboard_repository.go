package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DashboardRepository interface for dashboard analytics operations
type DashboardRepository interface {
	GetTotalSessions(ctx context.Context, tx *gorm.DB) (int64, error)
	GetCompletedSessions(ctx context.Context, tx *gorm.DB) (int64, error)
	GetTotalQuestions(ctx context.Context, tx *gorm.DB) (int64, error)
	GetActiveUsers(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
	GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error)

	GetPerformanceByCategory(ctx context.Context, tx *gorm.DB, limit int) ([]CategoryPerformanceData, error)
	GetActivityTrends(ctx context.Context, tx *gorm.DB, since time.Time) ([]ActivityTrendData, error)
}

type ActivityTrendData struct {
	Date         time.Time `json:"date"`
	Sessions     int64     `json:"sessions"`
	Users        int64     `json:"users"`
	AverageScore float64   `json:"average_score"`
}

type CategoryPerformanceData struct {
	Category       string  `json:"category"`
	Accuracy       float64 `json:"accuracy"`
	TotalAnswers   int64   `json:"total_answers"`
	CorrectAnswers int64   `json:"correct_answers"`
}
