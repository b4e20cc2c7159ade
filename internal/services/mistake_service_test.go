package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func (f *fixture) recordAnswer(sessionID uint, userID string, q *models.Question, answer string, timeSpent int64) {
	correct, _ := analytics.CorrectAnswer(toQuestionOptions(q))
	if _, ok := f.repo.sessions[sessionID]; !ok {
		f.repo.sessions[sessionID] = &models.QuizSession{ID: sessionID, UserID: userID, Status: models.SessionCompleted}
	}
	f.repo.answers = append(f.repo.answers, models.SessionAnswer{
		ID:         f.repo.id(),
		SessionID:  sessionID,
		QuestionID: q.ID,
		UserID:     userID,
		Category:   q.Category,
		Difficulty: string(q.Difficulty),
		UserAnswer: answer,
		IsCorrect:  answer == correct,
		TimeSpent:  timeSpent,
		AnsweredAt: baseTime.Add(time.Duration(len(f.repo.answers)) * time.Minute),
	})
	_ = f.repo.History().Upsert(context.Background(), nil, userID, []repositories.AnswerOutcome{{
		QuestionID: q.ID,
		Category:   q.Category,
		IsCorrect:  answer == correct,
	}})
}

// seedMistakes gives student-1 three adjacent-option misses on a Math question and one
// slow miss on a Science question.
func (f *fixture) seedMistakes() (math, science *models.Question) {
	math = f.repo.addQuestion("Math", "beginner", []string{"A", "B", "C", "D"}, 1)
	science = f.repo.addQuestion("Science", "advanced", []string{"A", "B", "C", "D"}, 0)

	for session := uint(1); session <= 3; session++ {
		f.recordAnswer(session, "student-1", math, "A", 1000)
	}
	f.recordAnswer(1, "student-1", science, "C", 20000)

	f.recordAnswer(10, "student-2", math, "B", 1000)
	f.recordAnswer(10, "student-2", science, "A", 1000)
	f.recordAnswer(11, "student-3", science, "A", 1000)
	return math, science
}

func TestMistakeService_PatternReport(t *testing.T) {
	f := newFixture(t)
	f.seedMistakes()

	report, err := f.mistakes.GetPatternReport(context.Background(), "student-1")
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalMistakes)
	assert.Equal(t, map[string]int{"Math": 3, "Science": 1}, report.ByCategory)
	assert.Equal(t, 3, report.ByType[analytics.MistakeCareless])
	assert.Equal(t, 1, report.ByType[analytics.MistakeTimePressure])
	assert.Equal(t, []analytics.MistakeTrend{
		{Type: analytics.MistakeCareless, Count: 3, Percentage: 75},
		{Type: analytics.MistakeTimePressure, Count: 1, Percentage: 25},
	}, report.MistakeTrend)
	assert.Equal(t, "Math", report.TopProblemCategories[0].Category)

	assert.True(t, f.redis.Exists("mistakes:"+cache.MistakeReportKey("student-1", reportPatterns)))
}

func TestMistakeService_RemediationAndFrequency(t *testing.T) {
	f := newFixture(t)
	math, science := f.seedMistakes()
	ctx := context.Background()

	plan, err := f.mistakes.GetRemediationPlan(ctx, "student-1")
	require.NoError(t, err)
	require.Len(t, plan.Areas, 2)
	assert.Equal(t, 1.0, plan.Areas[0].Priority)
	assert.Equal(t, 10, plan.Areas[0].RecommendedSessions)
	assert.Equal(t, 10, plan.EstimatedTimeToMastery)
	assert.Contains(t, plan.MistakeFocus, "re-read")

	freq, err := f.mistakes.GetMistakeFrequency(ctx, "student-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []analytics.MistakeFrequency{
		{QuestionID: formatID(math.ID), MistakeRate: 100},
		{QuestionID: formatID(science.ID), MistakeRate: 100},
	}, freq)

	freq, err = f.mistakes.GetMistakeFrequency(ctx, "student-2")
	require.NoError(t, err)
	for _, entry := range freq {
		assert.Equal(t, 0, entry.MistakeRate)
	}
}

func TestMistakeService_SystematicErrors(t *testing.T) {
	f := newFixture(t)
	f.seedMistakes()

	errs, err := f.mistakes.GetSystematicErrors(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []analytics.SystematicError{
		{Pattern: "option_0_correct_1", ChosenIndex: 0, CorrectIndex: 1, Count: 3},
	}, errs)
}

func TestMistakeService_NoHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.mistakes.GetPatternReport(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalMistakes)
	assert.Empty(t, report.MistakeTrend)

	plan, err := f.mistakes.GetRemediationPlan(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, plan.Areas)
	assert.Equal(t, 0, plan.EstimatedTimeToMastery)
}

func TestMistakeService_CompletionInvalidatesReports(t *testing.T) {
	f := newFixture(t)
	f.seedMistakes()
	ctx := context.Background()

	_, err := f.mistakes.GetPatternReport(ctx, "student-1")
	require.NoError(t, err)
	_, err = f.mistakes.GetPatternReport(ctx, "student-2")
	require.NoError(t, err)

	event, err := events.NewEvent(events.EventSessionCompleted, events.SessionCompletedData{SessionID: 1, UserID: "student-1"})
	require.NoError(t, err)
	require.NoError(t, f.mistakes.HandleSessionCompleted(ctx, event))

	assert.False(t, f.redis.Exists("mistakes:"+cache.MistakeReportKey("student-1", reportPatterns)))
	assert.True(t, f.redis.Exists("mistakes:"+cache.MistakeReportKey("student-2", reportPatterns)))
}

func TestMistakeService_ClassifyAnswer(t *testing.T) {
	f := newFixture(t)
	math, _ := f.seedMistakes()
	ctx := context.Background()
	avg := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		req     ClassifyAnswerRequest
		correct bool
		want    analytics.MistakeType
	}{
		{"correct", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "B", TimeSpent: 1000}, true, ""},
		{"adjacent option", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "C", TimeSpent: 1000, AverageTime: avg(1000)}, false, analytics.MistakeCareless},
		{"far option", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "D", TimeSpent: 1000, AverageTime: avg(1000)}, false, analytics.MistakeKnowledgeGap},
		{"slow", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "A", TimeSpent: 2600, AverageTime: avg(1000)}, false, analytics.MistakeTimePressure},
		{"boundary is not slow", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "A", TimeSpent: 2500, AverageTime: avg(1000)}, false, analytics.MistakeCareless},
		{"stored baseline", ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "D", TimeSpent: 4000}, false, analytics.MistakeTimePressure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.mistakes.ClassifyAnswer(ctx, "teacher-1", &tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.correct, resp.IsCorrect)
			assert.Equal(t, tt.want, resp.MistakeType)
			assert.Equal(t, "B", resp.CorrectAnswer)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.MistakesClassified.WithLabelValues(string(analytics.MistakeCareless))))

	_, err := f.mistakes.ClassifyAnswer(ctx, "teacher-1", &ClassifyAnswerRequest{QuestionID: 9999, UserAnswer: "A"})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestMistakeService_ClassifyAnswerDuringActiveSession(t *testing.T) {
	f := newFixture(t)
	math := f.repo.addQuestion("Math", "beginner", []string{"A", "B", "C", "D"}, 0)
	other := f.repo.addQuestion("Science", "beginner", []string{"A", "B"}, 1)
	ctx := context.Background()

	session := f.start(t, "student-1", 2)
	require.Len(t, session.Questions, 2)

	_, err := f.mistakes.ClassifyAnswer(ctx, "student-1", &ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "zzz"})
	var ruleErr *BusinessRuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "answer_hidden_during_session", ruleErr.Rule)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.MistakesClassified.WithLabelValues(string(analytics.MistakeKnowledgeGap))))

	// Other users are not affected by student-1's session
	resp, err := f.mistakes.ClassifyAnswer(ctx, "teacher-1", &ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "A"})
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)

	f.answer(t, session.ID, math.ID, "student-1", "A", 1000)
	f.answer(t, session.ID, other.ID, "student-1", "B", 1000)
	_, err = f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)

	resp, err = f.mistakes.ClassifyAnswer(ctx, "student-1", &ClassifyAnswerRequest{QuestionID: math.ID, UserAnswer: "zzz"})
	require.NoError(t, err)
	assert.False(t, resp.IsCorrect)
	assert.Equal(t, "A", resp.CorrectAnswer)
}

func TestMistakeService_ReportsSkipActiveSessions(t *testing.T) {
	f := newFixture(t)
	f.seedMistakes()
	ctx := context.Background()

	session := f.start(t, "student-1", 1)
	require.Len(t, session.Questions, 1)
	f.answer(t, session.ID, session.Questions[0].QuestionID, "student-1", "D", 1000)

	report, err := f.mistakes.GetPatternReport(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalMistakes)

	freq, err := f.mistakes.GetMistakeFrequency(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, freq, 2)

	_, err = f.sessions.Complete(ctx, session.ID, "student-1")
	require.NoError(t, err)
	f.mistakes.InvalidateUser(ctx, "student-1")

	report, err = f.mistakes.GetPatternReport(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 5, report.TotalMistakes)
}
