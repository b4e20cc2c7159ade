package services

import (
	"sort"
	"strconv"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
)

// Conversions between persisted rows and the analytics package.

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func toAnalyticsQuestion(q *models.Question) analytics.Question {
	options := make([]analytics.Option, 0, len(q.Options))
	for _, opt := range sortedOptions(q.Options) {
		options = append(options, analytics.Option{Text: opt.Text, IsCorrect: opt.IsCorrect})
	}
	return analytics.Question{
		ID:         formatID(q.ID),
		Category:   q.Category,
		Difficulty: string(q.Difficulty),
		Options:    options,
	}
}

func toAnalyticsQuestions(questions []*models.Question) []analytics.Question {
	out := make([]analytics.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, toAnalyticsQuestion(q))
	}
	return out
}

func toAnalyticsAnswer(a *models.SessionAnswer) analytics.Answer {
	answer := analytics.Answer{
		QuestionID: formatID(a.QuestionID),
		Category:   a.Category,
		Difficulty: a.Difficulty,
		UserAnswer: a.UserAnswer,
		IsCorrect:  a.IsCorrect,
		TimeSpent:  a.TimeSpent,
		AnsweredAt: a.AnsweredAt,
	}
	if a.TopicName != nil {
		answer.TopicName = *a.TopicName
	}
	return answer
}

// toAnalyticsSession flattens a session loaded with GetWithDetails
func toAnalyticsSession(session *models.QuizSession) analytics.Session {
	questions := make([]models.SessionQuestion, len(session.Questions))
	copy(questions, session.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})

	out := analytics.Session{
		Questions: make([]analytics.Question, 0, len(questions)),
		Answers:   make([]analytics.Answer, 0, len(session.Answers)),
	}
	for i := range questions {
		q := questions[i].Question
		if q.ID == 0 {
			q.ID = questions[i].QuestionID
		}
		out.Questions = append(out.Questions, toAnalyticsQuestion(&q))
	}
	for i := range session.Answers {
		out.Answers = append(out.Answers, toAnalyticsAnswer(&session.Answers[i]))
	}
	return out
}

func toAnalyticsEvents(events []models.ProctoringEvent) []analytics.ProctoringEvent {
	out := make([]analytics.ProctoringEvent, 0, len(events))
	for _, e := range events {
		out = append(out, analytics.ProctoringEvent{Type: e.Type, OccurredAt: e.OccurredAt})
	}
	return out
}

func toUserHistories(rows []*models.UserQuestionHistory) []analytics.UserHistory {
	out := make([]analytics.UserHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, analytics.UserHistory{
			QuestionID:      formatID(r.QuestionID),
			Category:        r.Category,
			TotalAttempts:   r.TotalAttempts,
			CorrectAttempts: r.CorrectAttempts,
		})
	}
	return out
}

func sortedOptions(options []models.QuestionOption) []models.QuestionOption {
	out := make([]models.QuestionOption, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

func toQuestionOptions(q *models.Question) []analytics.Option {
	return toAnalyticsQuestion(q).Options
}
