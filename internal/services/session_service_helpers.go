package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

// buildSessionAnalytics runs the pure analytics over a fully loaded session
func buildSessionAnalytics(session *models.QuizSession, generatedAt time.Time) *models.SessionAnalytics {
	snapshot := toAnalyticsSession(session)

	return &models.SessionAnalytics{
		Summary:     analytics.GenerateAnalytics(snapshot),
		Score:       analytics.CalculateScore(snapshot),
		Timing:      analytics.TimingBreakdown(snapshot),
		Proctoring:  analytics.SummarizeProctoring(toAnalyticsEvents(session.ProctoringEvents)),
		GeneratedAt: generatedAt,
	}
}

// buildSessionResponse hides correct answers while the session is active
func buildSessionResponse(session *models.QuizSession) *SessionResponse {
	resp := &SessionResponse{
		ID:          session.ID,
		PublicID:    session.PublicID,
		UserID:      session.UserID,
		Status:      session.Status,
		Category:    session.Category,
		Difficulty:  session.Difficulty,
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		Questions:   make([]SessionQuestionView, 0, len(session.Questions)),
		Answered:    make([]uint, 0, len(session.Answers)),
	}

	questions := make([]models.SessionQuestion, len(session.Questions))
	copy(questions, session.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})

	completed := session.IsCompleted()
	for _, sq := range questions {
		q := sq.Question
		view := SessionQuestionView{
			QuestionID: sq.QuestionID,
			Position:   sq.Position,
			Text:       q.Text,
			Category:   q.Category,
			TopicName:  q.TopicName,
			Difficulty: string(q.Difficulty),
			Options:    make([]string, 0, len(q.Options)),
		}
		for _, opt := range sortedOptions(q.Options) {
			view.Options = append(view.Options, opt.Text)
		}
		if completed {
			if correct, ok := analytics.CorrectAnswer(toQuestionOptions(&q)); ok {
				view.CorrectAnswer = &correct
			}
			view.Explanation = q.Explanation
		}
		resp.Questions = append(resp.Questions, view)
	}

	for _, a := range session.Answers {
		resp.Answered = append(resp.Answered, a.QuestionID)
	}

	if completed {
		score := session.Score()
		resp.Score = &score
	}

	return resp
}

func answerOutcomes(answers []models.SessionAnswer) []repositories.AnswerOutcome {
	out := make([]repositories.AnswerOutcome, 0, len(answers))
	for _, a := range answers {
		out = append(out, repositories.AnswerOutcome{
			QuestionID: a.QuestionID,
			Category:   a.Category,
			IsCorrect:  a.IsCorrect,
			AnsweredAt: a.AnsweredAt,
		})
	}
	return out
}

func derefEvents(rows []*models.ProctoringEvent) []models.ProctoringEvent {
	out := make([]models.ProctoringEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out
}

// publishEvent publishes best effort: failures are logged and counted, never returned.
func publishEvent(ctx context.Context, publisher events.EventPublisher, m *metrics.Metrics, logger *slog.Logger, eventType string, data interface{}) {
	if publisher == nil {
		return
	}

	event, err := events.NewEvent(eventType, data)
	if err != nil {
		logger.Error("Failed to build event", "event_type", eventType, "error", err)
		return
	}

	err = publisher.Publish(ctx, event)
	if m != nil {
		m.EventPublished(eventType, err)
	}
	if err != nil {
		logger.Error("Failed to publish event", "event_type", eventType, "event_id", event.ID, "error", err)
	}
}
