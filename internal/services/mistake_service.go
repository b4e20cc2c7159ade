package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/validator"
)

// Report names used in cache keys
const (
	reportPatterns    = "patterns"
	reportRemediation = "remediation"
	reportFrequency   = "frequency"
	reportSystematic  = "systematic"
)

type mistakeService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	cache     *cache.CacheManager
	metrics   *metrics.Metrics
}

func NewMistakeService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheManager *cache.CacheManager,
	m *metrics.Metrics,
) MistakeService {
	return &mistakeService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		cache:     cacheManager,
		metrics:   m,
	}
}

// userMistakeData is everything the mistake reports are computed from
type userMistakeData struct {
	entries   []analytics.HistoryEntry
	questions []analytics.Question
	histories []analytics.UserHistory
}

func (s *mistakeService) GetPatternReport(ctx context.Context, userID string) (*analytics.PatternReport, error) {
	return cache.CacheOrExecute(ctx, s.cache.Mistakes, cache.MistakeReportKey(userID, reportPatterns), func() (*analytics.PatternReport, error) {
		data, err := s.loadUserData(ctx, userID)
		if err != nil {
			return nil, err
		}
		report := analytics.AnalyzePatterns(data.entries, data.questions)
		return &report, nil
	})
}

func (s *mistakeService) GetRemediationPlan(ctx context.Context, userID string) (*analytics.RemediationPlan, error) {
	return cache.CacheOrExecute(ctx, s.cache.Mistakes, cache.MistakeReportKey(userID, reportRemediation), func() (*analytics.RemediationPlan, error) {
		data, err := s.loadUserData(ctx, userID)
		if err != nil {
			return nil, err
		}
		report := analytics.AnalyzePatterns(data.entries, data.questions)
		plan := analytics.GenerateRemediationPlan(report, data.histories)
		return &plan, nil
	})
}

func (s *mistakeService) GetMistakeFrequency(ctx context.Context, userID string) ([]analytics.MistakeFrequency, error) {
	return cache.CacheOrExecute(ctx, s.cache.Mistakes, cache.MistakeReportKey(userID, reportFrequency), func() ([]analytics.MistakeFrequency, error) {
		rows, err := s.repo.History().ListByUser(ctx, nil, userID)
		if err != nil {
			return nil, err
		}
		return analytics.CalculateMistakeFrequency(toUserHistories(rows)), nil
	})
}

func (s *mistakeService) GetSystematicErrors(ctx context.Context, userID string) ([]analytics.SystematicError, error) {
	return cache.CacheOrExecute(ctx, s.cache.Mistakes, cache.MistakeReportKey(userID, reportSystematic), func() ([]analytics.SystematicError, error) {
		data, err := s.loadUserData(ctx, userID)
		if err != nil {
			return nil, err
		}
		return analytics.IdentifySystematicErrors(data.entries, data.questions), nil
	})
}

// ClassifyAnswer labels a single answer without storing it. Without an explicit
// baseline the question's average answer time is used.
func (s *mistakeService) ClassifyAnswer(ctx context.Context, userID string, req *ClassifyAnswerRequest) (*ClassifyAnswerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// The response carries the correct answer
	if err := s.checkNotInActiveSession(ctx, userID, req.QuestionID); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	q := toAnalyticsQuestion(question)
	correct, ok := analytics.CorrectAnswer(q.Options)
	if !ok {
		return nil, NewBusinessRuleError(
			"single_correct_option",
			"Question has no correct option",
			map[string]interface{}{"question_id": req.QuestionID},
		)
	}

	avgTime := 0.0
	if req.AverageTime != nil {
		avgTime = *req.AverageTime
	} else {
		averages, err := s.repo.Session().AverageTimeByQuestion(ctx, nil, []uint{req.QuestionID})
		if err != nil {
			return nil, err
		}
		avgTime = averages[req.QuestionID]
	}

	userAnswer := strings.TrimSpace(req.UserAnswer)
	resp := &ClassifyAnswerResponse{
		QuestionID:    req.QuestionID,
		IsCorrect:     true,
		CorrectAnswer: correct,
		AverageTime:   avgTime,
	}
	if mistake, wrong := analytics.ClassifyMistake(q, userAnswer, correct, req.TimeSpent, avgTime); wrong {
		resp.IsCorrect = false
		resp.MistakeType = mistake
		if s.metrics != nil {
			s.metrics.MistakesClassified.WithLabelValues(string(mistake)).Inc()
		}
	}

	return resp, nil
}

func (s *mistakeService) checkNotInActiveSession(ctx context.Context, userID string, questionID uint) error {
	active := models.SessionActive
	sessions, _, err := s.repo.Session().ListByUser(ctx, nil, userID, repositories.SessionFilters{Status: &active})
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}

	for _, session := range sessions {
		detailed, err := s.repo.Session().GetWithDetails(ctx, nil, session.ID)
		if err != nil {
			return fmt.Errorf("failed to get session details: %w", err)
		}
		for _, link := range detailed.Questions {
			if link.QuestionID == questionID {
				return NewBusinessRuleError(
					"answer_hidden_during_session",
					"Question belongs to an active session",
					map[string]interface{}{"question_id": questionID, "session_id": session.ID},
				)
			}
		}
	}
	return nil
}

func (s *mistakeService) InvalidateUser(ctx context.Context, userID string) {
	cache.InvalidateUserReports(ctx, s.cache, userID)
}

// HandleSessionCompleted drops the user's cached reports once new answers are final.
func (s *mistakeService) HandleSessionCompleted(ctx context.Context, event *events.Event) error {
	var data events.SessionCompletedData
	if err := event.DecodeData(&data); err != nil {
		return fmt.Errorf("failed to decode session completed event: %w", err)
	}

	s.logger.Info("Invalidating mistake reports", "user_id", data.UserID, "session_id", data.SessionID)
	s.InvalidateUser(ctx, data.UserID)
	return nil
}

// loadUserData builds the history entries of userID. Wrong answers get a mistake type
// classified against the per-question average answer time.
func (s *mistakeService) loadUserData(ctx context.Context, userID string) (*userMistakeData, error) {
	answers, err := s.repo.Session().ListAnswersByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var ids []uint
	for _, a := range answers {
		if !seen[a.QuestionID] {
			seen[a.QuestionID] = true
			ids = append(ids, a.QuestionID)
		}
	}

	questions, err := s.repo.Question().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	averages, err := s.repo.Session().AverageTimeByQuestion(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.History().ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	converted := toAnalyticsQuestions(questions)
	byID := make(map[string]analytics.Question, len(converted))
	for _, q := range converted {
		byID[q.ID] = q
	}

	entries := make([]analytics.HistoryEntry, 0, len(answers))
	for _, a := range answers {
		entry := analytics.HistoryEntry{
			SessionID:  formatID(a.SessionID),
			QuestionID: formatID(a.QuestionID),
			UserAnswer: a.UserAnswer,
			IsCorrect:  a.IsCorrect,
			TimeSpent:  a.TimeSpent,
			AnsweredAt: a.AnsweredAt,
		}
		if !a.IsCorrect {
			if q, ok := byID[entry.QuestionID]; ok {
				if correct, ok := analytics.CorrectAnswer(q.Options); ok {
					if mistake, wrong := analytics.ClassifyMistake(q, a.UserAnswer, correct, a.TimeSpent, averages[a.QuestionID]); wrong {
						entry.MistakeType = mistake
					}
				}
			}
		}
		entries = append(entries, entry)
	}

	s.logger.Debug("Loaded mistake data", "user_id", userID, "answers", len(entries), "questions", len(converted))

	return &userMistakeData{
		entries:   entries,
		questions: converted,
		histories: toUserHistories(rows),
	}, nil
}
