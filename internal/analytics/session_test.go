package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcq(id, category, difficulty string) Question {
	return Question{
		ID:         id,
		Category:   category,
		Difficulty: difficulty,
		Options: []Option{
			{Text: "A", IsCorrect: true},
			{Text: "B"},
			{Text: "C"},
		},
	}
}

func TestGenerateAnalytics_CategoryBreakdown(t *testing.T) {
	session := Session{
		Questions: []Question{
			mcq("q1", "Math", "beginner"),
			mcq("q2", "Math", "beginner"),
			mcq("q3", "Verbal", "advanced"),
			mcq("q4", "Verbal", "advanced"),
		},
		Answers: []Answer{
			{QuestionID: "q1", IsCorrect: true},
			{QuestionID: "q2", IsCorrect: false},
			{QuestionID: "q3", IsCorrect: true},
			{QuestionID: "q4", IsCorrect: true},
		},
	}

	summary := GenerateAnalytics(session)

	assert.Equal(t, Performance{Correct: 1, Total: 2, Percentage: 50}, summary.CategoryPerformance["Math"])
	assert.Equal(t, Performance{Correct: 2, Total: 2, Percentage: 100}, summary.CategoryPerformance["Verbal"])
	assert.Equal(t, []string{"Math"}, summary.WeakAreas)
	assert.Equal(t, []string{"Verbal"}, summary.StrongAreas)
	assert.Equal(t, Performance{Correct: 1, Total: 2, Percentage: 50}, summary.DifficultyPerformance["beginner"])
	assert.Equal(t, Performance{Correct: 2, Total: 2, Percentage: 100}, summary.DifficultyPerformance["advanced"])
}

func TestGenerateAnalytics_UnansweredQuestionsOnlyCountTowardTotal(t *testing.T) {
	session := Session{
		Questions: []Question{
			mcq("q1", "Math", "beginner"),
			mcq("q2", "Math", "beginner"),
			mcq("q3", "Science", "beginner"),
		},
		Answers: []Answer{
			{QuestionID: "q1", IsCorrect: true, TimeSpent: 1000},
		},
	}

	summary := GenerateAnalytics(session)

	total := 0
	for _, p := range summary.CategoryPerformance {
		total += p.Total
	}
	assert.Equal(t, len(session.Questions), total)
	assert.Equal(t, Performance{Correct: 1, Total: 2, Percentage: 50}, summary.CategoryPerformance["Math"])
	assert.Equal(t, Performance{Correct: 0, Total: 1, Percentage: 0}, summary.CategoryPerformance["Science"])
	assert.Equal(t, 1000.0, summary.AverageTimePerQuestion)
}

func TestGenerateAnalytics_Defaults(t *testing.T) {
	tests := []struct {
		name           string
		question       Question
		wantCategory   string
		wantDifficulty string
	}{
		{name: "empty category", question: mcq("q1", "", "beginner"), wantCategory: UncategorizedLabel, wantDifficulty: "beginner"},
		{name: "upper-case difficulty", question: mcq("q1", "Math", "ADVANCED"), wantCategory: "Math", wantDifficulty: "advanced"},
		{name: "unknown difficulty", question: mcq("q1", "Math", "expert"), wantCategory: "Math", wantDifficulty: "intermediate"},
		{name: "missing difficulty", question: mcq("q1", "Math", ""), wantCategory: "Math", wantDifficulty: "intermediate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := GenerateAnalytics(Session{Questions: []Question{tt.question}})

			require.Contains(t, summary.CategoryPerformance, tt.wantCategory)
			require.Contains(t, summary.DifficultyPerformance, tt.wantDifficulty)
			assert.Len(t, summary.DifficultyPerformance, 1)
		})
	}
}

func TestGenerateAnalytics_Topics(t *testing.T) {
	session := Session{
		Questions: []Question{
			mcq("q1", "Math", "beginner"),
			mcq("q2", "Math", "beginner"),
			mcq("q3", "Math", "beginner"),
			mcq("q4", "Math", "beginner"),
		},
		Answers: []Answer{
			{QuestionID: "q1", TopicName: "Fractions", IsCorrect: false},
			{QuestionID: "q2", TopicName: "Fractions", IsCorrect: false},
			{QuestionID: "q3", TopicName: "Algebra", IsCorrect: true},
			{QuestionID: "q4", IsCorrect: true},
		},
	}

	summary := GenerateAnalytics(session)

	assert.Len(t, summary.TopicPerformance, 2)
	assert.Equal(t, Performance{Correct: 0, Total: 2, Percentage: 0}, summary.TopicPerformance["Fractions"])
	assert.Equal(t, Performance{Correct: 1, Total: 1, Percentage: 100}, summary.TopicPerformance["Algebra"])
	assert.Equal(t, []string{"Fractions"}, summary.WeakTopics)
	assert.Equal(t, summary.WeakTopics, summary.RecommendedTopics)
}

func TestGenerateAnalytics_LabelsAreCaseSensitive(t *testing.T) {
	session := Session{
		Questions: []Question{
			mcq("q1", "Math", "beginner"),
			mcq("q2", "math", "beginner"),
		},
	}

	summary := GenerateAnalytics(session)

	assert.Len(t, summary.CategoryPerformance, 2)
}

func TestGenerateAnalytics_Properties(t *testing.T) {
	session := Session{
		Questions: []Question{
			mcq("q1", "Math", "beginner"),
			mcq("q2", "Math", "advanced"),
			mcq("q3", "Math", "advanced"),
			mcq("q4", "Verbal", "intermediate"),
			mcq("q5", "Verbal", "intermediate"),
			mcq("q6", "Logic", "beginner"),
			mcq("q7", "", "beginner"),
		},
		Answers: []Answer{
			{QuestionID: "q1", IsCorrect: true, TimeSpent: 2000},
			{QuestionID: "q2", IsCorrect: true, TimeSpent: 4000},
			{QuestionID: "q3", IsCorrect: false, TimeSpent: 6000},
			{QuestionID: "q4", IsCorrect: false},
			{QuestionID: "q6", IsCorrect: true, TimeSpent: 3000},
		},
	}

	summary := GenerateAnalytics(session)

	for label, p := range summary.CategoryPerformance {
		assert.GreaterOrEqual(t, p.Percentage, 0, label)
		assert.LessOrEqual(t, p.Percentage, 100, label)
	}
	for _, strong := range summary.StrongAreas {
		assert.NotContains(t, summary.WeakAreas, strong)
		assert.Contains(t, summary.CategoryPerformance, strong)
	}
	for _, weak := range summary.WeakAreas {
		assert.Contains(t, summary.CategoryPerformance, weak)
	}
	assert.Equal(t, []string{"Logic"}, summary.StrongAreas)
	assert.Equal(t, []string{"Uncategorized", "Verbal"}, summary.WeakAreas)
	assert.Equal(t, 3000.0, summary.AverageTimePerQuestion)
}

func TestGenerateAnalytics_EmptySession(t *testing.T) {
	summary := GenerateAnalytics(Session{})

	assert.Empty(t, summary.CategoryPerformance)
	assert.Empty(t, summary.StrongAreas)
	assert.Empty(t, summary.WeakAreas)
	assert.Zero(t, summary.AverageTimePerQuestion)
}

func TestCalculateScore(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    Score
	}{
		{
			name: "partially correct",
			session: Session{
				Questions: []Question{mcq("q1", "", ""), mcq("q2", "", ""), mcq("q3", "", ""), mcq("q4", "", "")},
				Answers: []Answer{
					{QuestionID: "q1", IsCorrect: true},
					{QuestionID: "q2", IsCorrect: true},
					{QuestionID: "q3", IsCorrect: true},
					{QuestionID: "q4", IsCorrect: false},
				},
			},
			want: Score{Total: 4, Correct: 3, Incorrect: 1, Percentage: 75},
		},
		{
			name: "answers for unknown questions are ignored",
			session: Session{
				Questions: []Question{mcq("q1", "", "")},
				Answers:   []Answer{{QuestionID: "other", IsCorrect: true}},
			},
			want: Score{Total: 1, Correct: 0, Incorrect: 1, Percentage: 0},
		},
		{
			name: "empty session",
			want: Score{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateScore(tt.session))
		})
	}
}

func TestEvaluateAnswer(t *testing.T) {
	options := []Option{{Text: "Paris "}, {Text: " Berlin", IsCorrect: true}}

	tests := []struct {
		name    string
		options []Option
		answer  string
		want    bool
	}{
		{name: "exact", options: options, answer: " Berlin", want: true},
		{name: "trimmed", options: options, answer: "Berlin  ", want: true},
		{name: "case sensitive", options: options, answer: "berlin", want: false},
		{name: "wrong option", options: options, answer: "Paris", want: false},
		{name: "no correct option", options: []Option{{Text: "Berlin"}}, answer: "Berlin", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateAnswer(tt.options, tt.answer))
		})
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 100, Percentage(5, 5))
}
