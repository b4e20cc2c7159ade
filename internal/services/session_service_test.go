package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/validator"
)

type fixture struct {
	repo      *fakeRepository
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	redis     *miniredis.Miniredis
	cache     *cache.CacheManager
	sessions  SessionService
	mistakes  MistakeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		repo:      newFakeRepository(),
		publisher: events.NewMockEventPublisher(nil),
		metrics:   metrics.New(prometheus.NewRegistry()),
		redis:     mr,
		cache:     cache.NewCacheManager(client),
	}
	v := validator.New()
	f.sessions = NewSessionService(f.repo, nil, discardLogger(), v, f.publisher, f.cache, f.metrics)
	f.mistakes = NewMistakeService(f.repo, nil, discardLogger(), v, f.cache, f.metrics)
	return f
}

// seedQuiz adds two Math questions and one Science question.
func (f *fixture) seedQuiz() []*models.Question {
	return []*models.Question{
		f.repo.addQuestion("Math", "beginner", []string{"A", "B", "C", "D"}, 0),
		f.repo.addQuestion("Math", "intermediate", []string{"A", "B", "C", "D"}, 1),
		f.repo.addQuestion("Science", "advanced", []string{"A", "B", "C", "D"}, 2),
	}
}

func (f *fixture) start(t *testing.T, userID string, count int) *SessionResponse {
	t.Helper()
	resp, err := f.sessions.Start(context.Background(), userID, &StartSessionRequest{QuestionCount: count})
	require.NoError(t, err)
	return resp
}

func (f *fixture) answer(t *testing.T, sessionID, questionID uint, userID, answer string, timeSpent int64) {
	t.Helper()
	_, err := f.sessions.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionID: questionID,
		UserAnswer: answer,
		TimeSpent:  timeSpent,
	}, userID)
	require.NoError(t, err)
}

func publishedTypes(p *events.MockEventPublisher) []string {
	var out []string
	for _, e := range p.GetPublishedEvents() {
		out = append(out, e.Type)
	}
	return out
}

func TestSessionService_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	qs := f.seedQuiz()
	ctx := context.Background()

	session := f.start(t, "student-1", 3)
	require.Len(t, session.Questions, 3)
	assert.Equal(t, models.SessionActive, session.Status)
	for _, q := range session.Questions {
		assert.Nil(t, q.CorrectAnswer, "correct answer must stay hidden while active")
	}

	f.answer(t, session.ID, qs[0].ID, "student-1", "A", 1000)
	f.answer(t, session.ID, qs[1].ID, "student-1", "A", 2000)
	f.answer(t, session.ID, qs[2].ID, "student-1", "  C ", 3000)

	doc, err := f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)

	assert.Equal(t, analytics.Score{Total: 3, Correct: 2, Incorrect: 1, Percentage: 67}, doc.Score)
	assert.Equal(t, []string{"Science"}, doc.StrongAreas)
	assert.Equal(t, []string{"Math"}, doc.WeakAreas)
	assert.Equal(t, analytics.Performance{Correct: 1, Total: 2, Percentage: 50}, doc.CategoryPerformance["Math"])
	assert.InDelta(t, 2000.0, doc.AverageTimePerQuestion, 1e-9)
	assert.Equal(t, int64(6000), doc.Timing.TotalTimeSpent)

	assert.Equal(t, []string{events.EventSessionStarted, events.EventSessionCompleted}, publishedTypes(f.publisher))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsCompleted))

	stored := f.repo.sessions[session.ID]
	assert.True(t, stored.IsCompleted())
	assert.Equal(t, 67, stored.Percentage)
	assert.Len(t, f.repo.history, 3)

	view, err := f.sessions.GetSession(ctx, session.ID, "student-1")
	require.NoError(t, err)
	require.NotNil(t, view.Score)
	require.NotNil(t, view.Questions[1].CorrectAnswer)
	assert.Equal(t, "B", *view.Questions[1].CorrectAnswer)
}

func TestSessionService_CompleteTwice(t *testing.T) {
	f := newFixture(t)
	f.seedQuiz()
	ctx := context.Background()

	session := f.start(t, "student-1", 3)
	_, err := f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)

	_, err = f.sessions.Complete(ctx, session.ID, "student-1")
	assert.ErrorIs(t, err, ErrSessionAlreadyCompleted)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsCompleted))
}

func TestSessionService_CompleteEmptySession(t *testing.T) {
	f := newFixture(t)
	f.seedQuiz()

	session := f.start(t, "student-1", 2)
	doc, err := f.sessions.Complete(context.Background(), session.ID, "student-1")
	require.NoError(t, err)

	assert.Equal(t, analytics.Score{Total: 2, Correct: 0, Incorrect: 2, Percentage: 0}, doc.Score)
	assert.Equal(t, 0.0, doc.AverageTimePerQuestion)
	assert.Empty(t, doc.StrongAreas)
}

func TestSessionService_SubmitAnswerRules(t *testing.T) {
	f := newFixture(t)
	qs := f.seedQuiz()
	other := f.repo.addQuestion("History", "beginner", []string{"X", "Y"}, 0)
	ctx := context.Background()

	session := f.start(t, "student-1", 3)

	t.Run("foreign user", func(t *testing.T) {
		_, err := f.sessions.SubmitAnswer(ctx, session.ID, &SubmitAnswerRequest{QuestionID: qs[0].ID, UserAnswer: "A"}, "student-2")
		var permErr *PermissionError
		assert.ErrorAs(t, err, &permErr)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("question outside session", func(t *testing.T) {
		_, err := f.sessions.SubmitAnswer(ctx, session.ID, &SubmitAnswerRequest{QuestionID: other.ID, UserAnswer: "X"}, "student-1")
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "question_in_session", verrs[0].Rule)
	})

	t.Run("first answer wins", func(t *testing.T) {
		f.answer(t, session.ID, qs[0].ID, "student-1", "B", 100)
		_, err := f.sessions.SubmitAnswer(ctx, session.ID, &SubmitAnswerRequest{QuestionID: qs[0].ID, UserAnswer: "A"}, "student-1")
		assert.ErrorIs(t, err, ErrAnswerAlreadySubmitted)
		assert.False(t, f.repo.answers[0].IsCorrect)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.sessions.SubmitAnswer(ctx, 9999, &SubmitAnswerRequest{QuestionID: qs[0].ID, UserAnswer: "A"}, "student-1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("completed session", func(t *testing.T) {
		_, err := f.sessions.Complete(ctx, session.ID, "student-1")
		require.NoError(t, err)
		_, err = f.sessions.SubmitAnswer(ctx, session.ID, &SubmitAnswerRequest{QuestionID: qs[1].ID, UserAnswer: "B"}, "student-1")
		assert.ErrorIs(t, err, ErrSessionAlreadyCompleted)
	})
}

func TestSessionService_StartRules(t *testing.T) {
	ctx := context.Background()

	t.Run("no questions", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.Start(ctx, "student-1", &StartSessionRequest{QuestionCount: 5})
		assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
	})

	t.Run("category filter", func(t *testing.T) {
		f := newFixture(t)
		f.seedQuiz()
		category := "Science"
		resp, err := f.sessions.Start(ctx, "student-1", &StartSessionRequest{Category: &category, QuestionCount: 5})
		require.NoError(t, err)
		require.Len(t, resp.Questions, 1)
		assert.Equal(t, "Science", resp.Questions[0].Category)
	})

	t.Run("active session cap", func(t *testing.T) {
		f := newFixture(t)
		f.seedQuiz()
		for i := 0; i < validator.MaxActiveSessions; i++ {
			f.start(t, "student-1", 1)
		}
		_, err := f.sessions.Start(ctx, "student-1", &StartSessionRequest{QuestionCount: 1})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "max_active_sessions", verrs[0].Rule)
	})

	t.Run("invalid difficulty", func(t *testing.T) {
		f := newFixture(t)
		f.seedQuiz()
		difficulty := "impossible"
		_, err := f.sessions.Start(ctx, "student-1", &StartSessionRequest{Difficulty: &difficulty, QuestionCount: 1})
		var verrs ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})
}

func TestSessionService_ProctoringFlagsOnce(t *testing.T) {
	f := newFixture(t)
	f.seedQuiz()
	ctx := context.Background()
	session := f.start(t, "student-1", 1)

	var last *ProctoringResponse
	for i := 0; i < analytics.SuspiciousActivityThreshold+1; i++ {
		resp, err := f.sessions.RecordProctoringEvent(ctx, session.ID, &ProctoringEventRequest{Type: analytics.EventTabSwitch}, "student-1")
		require.NoError(t, err)
		last = resp
	}

	assert.True(t, last.Summary.Flagged)
	assert.Equal(t, analytics.SuspiciousActivityThreshold+1, last.Summary.Counts[analytics.EventTabSwitch])

	flagged := 0
	for _, typ := range publishedTypes(f.publisher) {
		if typ == events.EventProctoringFlagged {
			flagged++
		}
	}
	assert.Equal(t, 1, flagged)

	_, err := f.sessions.RecordProctoringEvent(ctx, session.ID, &ProctoringEventRequest{Type: "screenshot"}, "student-1")
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	doc, err := f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)
	assert.True(t, doc.Proctoring.Flagged)
}

func TestSessionService_GetAnalytics(t *testing.T) {
	f := newFixture(t)
	qs := f.seedQuiz()
	ctx := context.Background()
	session := f.start(t, "student-1", 3)

	_, err := f.sessions.GetAnalytics(ctx, session.ID, "student-1")
	var ruleErr *BusinessRuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "session_completed", ruleErr.Rule)
	assert.False(t, f.redis.Exists("analytics:"+cache.SessionAnalyticsKey(session.ID)))

	f.answer(t, session.ID, qs[0].ID, "student-1", "A", 500)
	_, err = f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)

	doc, err := f.sessions.GetAnalytics(ctx, session.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Score.Correct)
	assert.True(t, f.redis.Exists("analytics:"+cache.SessionAnalyticsKey(session.ID)))

	// Cached copy still enforces ownership.
	_, err = f.sessions.GetAnalytics(ctx, session.ID, "student-2")
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	_, err = f.sessions.GetAnalytics(ctx, 4242, "student-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_PublishFailureDoesNotFailComplete(t *testing.T) {
	f := newFixture(t)
	f.seedQuiz()
	session := f.start(t, "student-1", 1)

	f.publisher.FailWith(errors.New("broker down"))
	_, err := f.sessions.Complete(context.Background(), session.ID, "student-1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues(events.EventSessionCompleted, "error")))
}

func TestSessionService_ListSessions(t *testing.T) {
	f := newFixture(t)
	f.seedQuiz()
	ctx := context.Background()

	first := f.start(t, "student-1", 1)
	f.start(t, "student-1", 1)
	f.start(t, "student-2", 1)
	_, err := f.sessions.Complete(ctx, first.ID, "student-1")
	require.NoError(t, err)

	list, err := f.sessions.ListSessions(ctx, "student-1", repositoriesFilters(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, defaultSessionPageSize, list.Limit)

	completed := models.SessionCompleted
	list, err = f.sessions.ListSessions(ctx, "student-1", repositoriesFilters(&completed))
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, first.ID, list.Sessions[0].ID)
	assert.Equal(t, 1, list.Sessions[0].Score.Total)
}

func repositoriesFilters(status *models.SessionStatus) repositories.SessionFilters {
	return repositories.SessionFilters{Status: status}
}
