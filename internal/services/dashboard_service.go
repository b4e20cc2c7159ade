package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

// ===== RESPONSE DTOs =====

type DashboardStatsResponse struct {
	Overview    DashboardOverview       `json:"overview"`
	Metrics     DashboardMetrics        `json:"metrics"`
	Categories  []CategoryStatsResponse `json:"categories"`
	Activity    []ActivityTrendResponse `json:"activity"`
	GeneratedAt time.Time               `json:"generated_at"`
}

type DashboardOverview struct {
	TotalSessions     int64 `json:"total_sessions"`
	CompletedSessions int64 `json:"completed_sessions"`
	TotalQuestions    int64 `json:"total_questions"`
	ActiveUsers       int64 `json:"active_users"`
}

type DashboardMetrics struct {
	CompletionRate float64 `json:"completion_rate"`
	AverageScore   float64 `json:"average_score"`
}

type ActivityTrendResponse struct {
	Date         string  `json:"date"`
	Sessions     int64   `json:"sessions"`
	Users        int64   `json:"users"`
	AverageScore float64 `json:"average_score"`
}

type CategoryStatsResponse struct {
	Category     string  `json:"category"`
	Accuracy     float64 `json:"accuracy"`
	TotalAnswers int64   `json:"total_answers"`
}

// ===== SERVICE INTERFACE =====

type DashboardService interface {
	// GetDashboardStats aggregates over the last periodDays days (default 30)
	GetDashboardStats(ctx context.Context, periodDays int) (*DashboardStatsResponse, error)
	// Invalidate drops every cached stats snapshot
	Invalidate()
	HandleSessionCompleted(ctx context.Context, event *events.Event) error
}

const (
	defaultDashboardPeriod = 30
	maxDashboardPeriod     = 365
	dashboardCategoryLimit = 10
)

// ===== SERVICE IMPLEMENTATION =====

type dashboardService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	stats  *cache.StatsCache[*DashboardStatsResponse]
	clock  cache.Clock
}

func NewDashboardService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, ttl time.Duration, clock cache.Clock) DashboardService {
	if clock == nil {
		clock = cache.SystemClock()
	}
	return &dashboardService{
		repo:   repo,
		db:     db,
		logger: logger,
		stats:  cache.NewStatsCache[*DashboardStatsResponse](ttl, clock),
		clock:  clock,
	}
}

func (s *dashboardService) GetDashboardStats(ctx context.Context, periodDays int) (*DashboardStatsResponse, error) {
	if periodDays <= 0 {
		periodDays = defaultDashboardPeriod
	}
	if periodDays > maxDashboardPeriod {
		periodDays = maxDashboardPeriod
	}

	key := fmt.Sprintf("stats:%d", periodDays)
	return s.stats.GetOrLoad(key, func() (*DashboardStatsResponse, error) {
		return s.loadStats(ctx, periodDays)
	})
}

func (s *dashboardService) Invalidate() {
	s.stats.Invalidate()
}

func (s *dashboardService) HandleSessionCompleted(ctx context.Context, event *events.Event) error {
	s.Invalidate()
	return nil
}

func (s *dashboardService) loadStats(ctx context.Context, periodDays int) (*DashboardStatsResponse, error) {
	s.logger.Info("Loading dashboard stats", "period_days", periodDays)

	now := s.clock.Now()
	since := now.AddDate(0, 0, -periodDays)

	totalSessions, err := s.repo.Dashboard().GetTotalSessions(ctx, nil)
	if err != nil {
		return nil, err
	}

	completedSessions, err := s.repo.Dashboard().GetCompletedSessions(ctx, nil)
	if err != nil {
		return nil, err
	}

	totalQuestions, err := s.repo.Dashboard().GetTotalQuestions(ctx, nil)
	if err != nil {
		return nil, err
	}

	activeUsers, err := s.repo.Dashboard().GetActiveUsers(ctx, nil, since)
	if err != nil {
		return nil, err
	}

	averageScore, err := s.repo.Dashboard().GetAverageScore(ctx, nil)
	if err != nil {
		return nil, err
	}

	categories, err := s.repo.Dashboard().GetPerformanceByCategory(ctx, nil, dashboardCategoryLimit)
	if err != nil {
		return nil, err
	}

	trends, err := s.repo.Dashboard().GetActivityTrends(ctx, nil, since)
	if err != nil {
		s.logger.Warn("Failed to get activity trends", "error", err)
		trends = nil
	}

	completionRate := 0.0
	if totalSessions > 0 {
		completionRate = float64(completedSessions) / float64(totalSessions) * 100
	}

	response := &DashboardStatsResponse{
		Overview: DashboardOverview{
			TotalSessions:     totalSessions,
			CompletedSessions: completedSessions,
			TotalQuestions:    totalQuestions,
			ActiveUsers:       activeUsers,
		},
		Metrics: DashboardMetrics{
			CompletionRate: roundFloat(completionRate, 1),
			AverageScore:   roundFloat(averageScore, 1),
		},
		Categories:  make([]CategoryStatsResponse, 0, len(categories)),
		Activity:    make([]ActivityTrendResponse, 0, len(trends)),
		GeneratedAt: now,
	}

	for _, c := range categories {
		response.Categories = append(response.Categories, CategoryStatsResponse{
			Category:     c.Category,
			Accuracy:     roundFloat(c.Accuracy, 1),
			TotalAnswers: c.TotalAnswers,
		})
	}
	for _, t := range trends {
		response.Activity = append(response.Activity, ActivityTrendResponse{
			Date:         t.Date.Format("2006-01-02"),
			Sessions:     t.Sessions,
			Users:        t.Users,
			AverageScore: roundFloat(t.AverageScore, 1),
		})
	}

	return response, nil
}

// ===== HELPER FUNCTIONS =====

func roundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
