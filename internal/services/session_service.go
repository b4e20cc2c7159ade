package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/validator"
)

const (
	defaultSessionPageSize = 20
	maxSessionPageSize     = 100
)

type sessionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	cache     *cache.CacheManager
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewSessionService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
	cacheManager *cache.CacheManager,
	m *metrics.Metrics,
) SessionService {
	return &sessionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		cache:     cacheManager,
		metrics:   m,
		now:       time.Now,
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, userID string, req *StartSessionRequest) (*SessionResponse, error) {
	s.logger.Info("Starting quiz session", "user_id", userID, "question_count", req.QuestionCount)

	active, err := s.repo.Session().CountActive(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	if verrs := s.validator.GetBusinessValidator().ValidateSessionStart(req, active); len(verrs) > 0 {
		return nil, verrs
	}

	filters := repositories.RandomQuestionFilters{Count: req.QuestionCount}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		category := strings.TrimSpace(*req.Category)
		filters.Category = &category
	}
	if req.Difficulty != nil {
		difficulty := models.DifficultyLevel(strings.ToLower(*req.Difficulty))
		filters.Difficulty = &difficulty
	}

	questions, err := s.repo.Question().Random(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to select questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	session := &models.QuizSession{
		PublicID:       uuid.NewString(),
		UserID:         userID,
		Status:         models.SessionActive,
		Category:       filters.Category,
		Difficulty:     req.Difficulty,
		StartedAt:      s.now().UTC(),
		TotalQuestions: len(questions),
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Session().Create(ctx, nil, session); err != nil {
			return err
		}

		links := make([]models.SessionQuestion, 0, len(questions))
		for i, q := range questions {
			links = append(links, models.SessionQuestion{
				SessionID:  session.ID,
				QuestionID: q.ID,
				Position:   i,
			})
		}
		return txRepo.Session().AddQuestions(ctx, nil, links)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	for i, q := range questions {
		session.Questions = append(session.Questions, models.SessionQuestion{
			SessionID:  session.ID,
			QuestionID: q.ID,
			Position:   i,
			Question:   *q,
		})
	}

	s.publish(ctx, events.EventSessionStarted, events.SessionStartedData{
		SessionID:     session.ID,
		UserID:        userID,
		QuestionCount: len(questions),
		StartedAt:     session.StartedAt,
	})

	s.logger.Info("Quiz session started", "session_id", session.ID, "user_id", userID)

	return buildSessionResponse(session), nil
}

func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID uint, req *SubmitAnswerRequest, userID string) (*AnswerResponse, error) {
	s.logger.Info("Submitting answer", "session_id", sessionID, "question_id", req.QuestionID, "user_id", userID)

	session, err := s.loadOwnedSession(ctx, sessionID, userID, "answer")
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, ErrSessionAlreadyCompleted
	}

	if verrs := s.validator.GetBusinessValidator().ValidateAnswerSubmission(req, session); len(verrs) > 0 {
		return nil, verrs
	}

	for _, a := range session.Answers {
		if a.QuestionID == req.QuestionID {
			return nil, ErrAnswerAlreadySubmitted
		}
	}

	var question *models.Question
	for i := range session.Questions {
		if session.Questions[i].QuestionID == req.QuestionID {
			question = &session.Questions[i].Question
			break
		}
	}
	if question == nil || question.ID == 0 {
		return nil, ErrQuestionNotFound
	}

	userAnswer := strings.TrimSpace(req.UserAnswer)
	answer := &models.SessionAnswer{
		SessionID:  session.ID,
		QuestionID: question.ID,
		UserID:     userID,
		Category:   question.Category,
		TopicName:  question.TopicName,
		Difficulty: string(question.Difficulty),
		UserAnswer: userAnswer,
		IsCorrect:  analytics.EvaluateAnswer(toQuestionOptions(question), userAnswer),
		TimeSpent:  req.TimeSpent,
		AnsweredAt: s.now().UTC(),
	}

	if err := s.repo.Session().SaveAnswer(ctx, nil, answer); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	// A concurrent submission won the insert.
	if answer.ID == 0 {
		return nil, ErrAnswerAlreadySubmitted
	}

	cache.InvalidateSession(ctx, s.cache, session.ID)

	answered := len(session.Answers) + 1
	return &AnswerResponse{
		QuestionID: answer.QuestionID,
		Accepted:   true,
		AnsweredAt: answer.AnsweredAt,
		Answered:   answered,
		Remaining:  max(len(session.Questions)-answered, 0),
	}, nil
}

func (s *sessionService) RecordProctoringEvent(ctx context.Context, sessionID uint, req *ProctoringEventRequest, userID string) (*ProctoringResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.repo.Session().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", "record_proctoring", "not session owner")
	}
	if session.IsCompleted() {
		return nil, ErrSessionAlreadyCompleted
	}

	var details datatypes.JSON
	if len(req.Details) > 0 {
		raw, err := json.Marshal(req.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event details: %w", err)
		}
		details = datatypes.JSON(raw)
	}

	occurredAt := s.now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	event := &models.ProctoringEvent{
		SessionID:  sessionID,
		UserID:     userID,
		Type:       req.Type,
		Details:    details,
		OccurredAt: occurredAt,
	}
	if err := s.repo.Proctoring().Create(ctx, nil, event); err != nil {
		return nil, err
	}

	rows, err := s.repo.Proctoring().ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	summary := analytics.SummarizeProctoring(toAnalyticsEvents(derefEvents(rows)))

	// Published once, when the session first reaches the threshold.
	if summary.Total == analytics.SuspiciousActivityThreshold {
		s.logger.Warn("Suspicious activity threshold reached", "session_id", sessionID, "user_id", userID, "total", summary.Total)
		s.publish(ctx, events.EventProctoringFlagged, events.ProctoringFlaggedData{
			SessionID: sessionID,
			UserID:    userID,
			Counts:    summary.Counts,
			Total:     summary.Total,
		})
	}

	return &ProctoringResponse{EventID: event.ID, Summary: summary}, nil
}

// Complete scores the session and stores its analytics. Analytics are generated
// exactly once; a second call returns ErrSessionAlreadyCompleted.
func (s *sessionService) Complete(ctx context.Context, sessionID uint, userID string) (*models.SessionAnalytics, error) {
	s.logger.Info("Completing quiz session", "session_id", sessionID, "user_id", userID)

	var doc *models.SessionAnalytics
	var completedAt time.Time

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		locked, err := txRepo.Session().LockForUpdate(ctx, nil, sessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if locked.UserID != userID {
			return NewPermissionError(userID, sessionID, "session", "complete", "not session owner")
		}
		if locked.IsCompleted() {
			return ErrSessionAlreadyCompleted
		}

		session, err := txRepo.Session().GetWithDetails(ctx, nil, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}

		completedAt = s.now().UTC()
		start := time.Now()
		doc = buildSessionAnalytics(session, completedAt)
		if s.metrics != nil {
			s.metrics.ObserveAnalytics(start)
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal analytics: %w", err)
		}

		session.ApplyScore(doc.Score)
		session.CompletedAt = &completedAt
		session.Analytics = datatypes.JSON(payload)

		if err := txRepo.Session().Complete(ctx, nil, session); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSessionAlreadyCompleted
			}
			return err
		}

		return txRepo.History().Upsert(ctx, nil, userID, answerOutcomes(session.Answers))
	})
	if err != nil {
		var permErr *PermissionError
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionAlreadyCompleted) || errors.As(err, &permErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionsCompleted.Inc()
	}
	cache.InvalidateSession(ctx, s.cache, sessionID)

	s.publish(ctx, events.EventSessionCompleted, events.SessionCompletedData{
		SessionID:   sessionID,
		UserID:      userID,
		Score:       doc.Score,
		StrongAreas: doc.StrongAreas,
		WeakAreas:   doc.WeakAreas,
		Flagged:     doc.Proctoring.Flagged,
		CompletedAt: completedAt,
	})

	s.logger.Info("Quiz session completed",
		"session_id", sessionID,
		"user_id", userID,
		"percentage", doc.Score.Percentage,
		"weak_areas", doc.WeakAreas)

	return doc, nil
}

// ===== QUERIES =====

func (s *sessionService) GetSession(ctx context.Context, sessionID uint, userID string) (*SessionResponse, error) {
	resp, err := cache.CacheOrExecute(ctx, s.cache.Session, cache.SessionKey(sessionID), func() (*SessionResponse, error) {
		session, err := s.repo.Session().GetWithDetails(ctx, nil, sessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		return buildSessionResponse(session), nil
	})
	if err != nil {
		return nil, err
	}

	if resp.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", "read", "not session owner")
	}
	return resp, nil
}

// cachedAnalytics keeps the owner next to the document so cached reads can be
// authorised without a database round trip.
type cachedAnalytics struct {
	UserID    string                   `json:"user_id"`
	Analytics *models.SessionAnalytics `json:"analytics"`
}

func (s *sessionService) GetAnalytics(ctx context.Context, sessionID uint, userID string) (*models.SessionAnalytics, error) {
	entry, err := cache.CacheOrExecute(ctx, s.cache.Analytics, cache.SessionAnalyticsKey(sessionID), func() (cachedAnalytics, error) {
		session, err := s.repo.Session().GetByID(ctx, nil, sessionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return cachedAnalytics{}, ErrSessionNotFound
			}
			return cachedAnalytics{}, fmt.Errorf("failed to get session: %w", err)
		}
		if !session.IsCompleted() {
			return cachedAnalytics{UserID: session.UserID}, NewBusinessRuleError(
				"session_completed",
				"Analytics are available once the session is completed",
				map[string]interface{}{"session_id": sessionID, "status": session.Status},
			)
		}

		doc, err := session.DecodeAnalytics()
		if err != nil {
			return cachedAnalytics{}, fmt.Errorf("failed to decode analytics: %w", err)
		}
		return cachedAnalytics{UserID: session.UserID, Analytics: doc}, nil
	})
	if err != nil {
		var ruleErr *BusinessRuleError
		if errors.As(err, &ruleErr) && entry.UserID != userID {
			return nil, NewPermissionError(userID, sessionID, "session", "read_analytics", "not session owner")
		}
		return nil, err
	}

	if entry.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", "read_analytics", "not session owner")
	}
	return entry.Analytics, nil
}

func (s *sessionService) ListSessions(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionListResponse, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultSessionPageSize
	}
	if filters.Limit > maxSessionPageSize {
		filters.Limit = maxSessionPageSize
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	sessions, total, err := s.repo.Session().ListByUser(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	resp := &SessionListResponse{
		Sessions: make([]SessionSummary, 0, len(sessions)),
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, SessionSummary{
			ID:          session.ID,
			PublicID:    session.PublicID,
			Status:      session.Status,
			Category:    session.Category,
			StartedAt:   session.StartedAt,
			CompletedAt: session.CompletedAt,
			Score:       session.Score(),
		})
	}
	return resp, nil
}

// loadOwnedSession loads a session with details and checks the caller owns it
func (s *sessionService) loadOwnedSession(ctx context.Context, sessionID uint, userID, action string) (*models.QuizSession, error) {
	session, err := s.repo.Session().GetWithDetails(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", action, "not session owner")
	}
	return session, nil
}

func (s *sessionService) publish(ctx context.Context, eventType string, data interface{}) {
	publishEvent(ctx, s.publisher, s.metrics, s.logger, eventType, data)
}
