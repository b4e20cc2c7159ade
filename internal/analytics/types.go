// Package analytics holds the pure computations behind quiz reporting: per-session
// performance breakdowns and the mistake pattern classifier. Nothing here performs I/O;
// callers load sessions and histories first and persist the results themselves.
package analytics

import "time"

// Difficulty labels recognised after normalisation.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// UncategorizedLabel replaces a missing category.
const UncategorizedLabel = "Uncategorized"

// Option is one answer choice of a question.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is the question snapshot a session was played with.
type Question struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Options    []Option `json:"options"`
}

// Answer is one answer record within a session. Category, topic and difficulty are
// copied at answer time so reports stay stable when the question is edited later.
type Answer struct {
	QuestionID string    `json:"question_id"`
	Category   string    `json:"category"`
	TopicName  string    `json:"topic_name,omitempty"`
	Difficulty string    `json:"difficulty"`
	UserAnswer string    `json:"user_answer"`
	IsCorrect  bool      `json:"is_correct"`
	TimeSpent  int64     `json:"time_spent"` // milliseconds, 0 when not tracked
	AnsweredAt time.Time `json:"answered_at"`
}

// Session is a fully loaded quiz session.
type Session struct {
	Questions []Question
	Answers   []Answer
}

// Performance is the aggregate for one category, topic or difficulty bucket.
type Performance struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Summary is the analytics document attached to a completed session.
type Summary struct {
	CategoryPerformance    map[string]Performance `json:"category_performance"`
	TopicPerformance       map[string]Performance `json:"topic_performance"`
	DifficultyPerformance  map[string]Performance `json:"difficulty_performance"`
	StrongAreas            []string               `json:"strong_areas"`
	WeakAreas              []string               `json:"weak_areas"`
	WeakTopics             []string               `json:"weak_topics"`
	RecommendedTopics      []string               `json:"recommended_topics"`
	AverageTimePerQuestion float64                `json:"average_time_per_question"`
}

// Score is the session score summary.
type Score struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Percentage int `json:"percentage"`
}
