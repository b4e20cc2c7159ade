package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// MistakeType is the heuristic classification of a wrong answer.
type MistakeType string

const (
	MistakeCareless     MistakeType = "careless"
	MistakeKnowledgeGap MistakeType = "knowledge-gap"
	MistakeTimePressure MistakeType = "time-pressure"
)

// Valid reports whether t is one of the known mistake types.
func (t MistakeType) Valid() bool {
	switch t {
	case MistakeCareless, MistakeKnowledgeGap, MistakeTimePressure:
		return true
	}
	return false
}

const (
	// TimePressureRatio is the timeSpent/avgTime ratio above which a mistake is put
	// down to time pressure.
	TimePressureRatio = 2.5

	// SystematicErrorThreshold is the minimum occurrences of the same
	// chosen/correct option pair to report it.
	SystematicErrorThreshold = 3

	topProblemCategoryLimit = 3
	focusTopicLimit         = 3
)

// HistoryEntry is one answer from a user's history across sessions.
type HistoryEntry struct {
	SessionID   string      `json:"session_id"`
	QuestionID  string      `json:"question_id"`
	UserAnswer  string      `json:"user_answer"`
	IsCorrect   bool        `json:"is_correct"`
	TimeSpent   int64       `json:"time_spent"`
	MistakeType MistakeType `json:"mistake_type,omitempty"`
	AnsweredAt  time.Time   `json:"answered_at"`
}

// UserHistory is the per user and question attempt aggregate.
type UserHistory struct {
	QuestionID      string `json:"question_id"`
	Category        string `json:"category"`
	TotalAttempts   int    `json:"total_attempts"`
	CorrectAttempts int    `json:"correct_attempts"`
}

// Accuracy returns correct/total, or 0 when there were no attempts.
func (h UserHistory) Accuracy() float64 {
	if h.TotalAttempts <= 0 {
		return 0
	}
	return float64(h.CorrectAttempts) / float64(h.TotalAttempts)
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type MistakeTrend struct {
	Type       MistakeType `json:"type"`
	Count      int         `json:"count"`
	Percentage int         `json:"percentage"`
}

// PatternReport aggregates a user's wrong answers.
type PatternReport struct {
	TotalMistakes        int                 `json:"total_mistakes"`
	ByCategory           map[string]int      `json:"by_category"`
	ByDifficulty         map[string]int      `json:"by_difficulty"`
	ByType               map[MistakeType]int `json:"by_type"`
	TopProblemCategories []CategoryCount     `json:"top_problem_categories"`
	MistakeTrend         []MistakeTrend      `json:"mistake_trend"`
}

type RemediationArea struct {
	Category            string   `json:"category"`
	AverageAccuracy     float64  `json:"average_accuracy"`
	Priority            float64  `json:"priority"`
	RecommendedSessions int      `json:"recommended_sessions"`
	FocusTopics         []string `json:"focus_topics"`
}

type RemediationPlan struct {
	Areas                  []RemediationArea `json:"areas"`
	MistakeFocus           string            `json:"mistake_focus"`
	EstimatedTimeToMastery int               `json:"estimated_time_to_mastery"`
}

type MistakeFrequency struct {
	QuestionID  string `json:"question_id"`
	MistakeRate int    `json:"mistake_rate"`
}

type SystematicError struct {
	Pattern      string `json:"pattern"`
	ChosenIndex  int    `json:"chosen_index"`
	CorrectIndex int    `json:"correct_index"`
	Count        int    `json:"count"`
}

var mistakeFocusAdvice = map[MistakeType]string{
	MistakeCareless:     "Slow down and re-read every option before submitting; most misses were one choice away from the answer.",
	MistakeKnowledgeGap: "Review the core concepts of the weak categories before attempting more practice questions.",
	MistakeTimePressure: "Practice timed drills to build pacing; many mistakes happened after spending far longer than usual.",
}

const defaultMistakeFocus = "Keep practicing regularly to consolidate your current performance."

// ClassifyMistake labels a wrong answer. It returns false when the answer is correct.
// A missing time baseline (avgTime <= 0) is treated as a ratio of 0.
func ClassifyMistake(q Question, userAnswer, correctAnswer string, timeSpent int64, avgTime float64) (MistakeType, bool) {
	if userAnswer == correctAnswer {
		return "", false
	}

	var ratio float64
	if avgTime > 0 {
		ratio = float64(timeSpent) / avgTime
	}
	if ratio > TimePressureRatio {
		return MistakeTimePressure, true
	}

	userIndex := optionIndex(q.Options, userAnswer)
	correctIndex := optionIndex(q.Options, correctAnswer)
	if userIndex >= 0 && correctIndex >= 0 && abs(userIndex-correctIndex) == 1 {
		return MistakeCareless, true
	}

	return MistakeKnowledgeGap, true
}

// AnalyzePatterns tallies the incorrect entries of a history. Mistake types are only
// counted when the entry already carries one.
func AnalyzePatterns(history []HistoryEntry, questions []Question) PatternReport {
	byID := indexQuestions(questions)

	report := PatternReport{
		ByCategory:           map[string]int{},
		ByDifficulty:         map[string]int{},
		ByType:               map[MistakeType]int{},
		TopProblemCategories: []CategoryCount{},
		MistakeTrend:         []MistakeTrend{},
	}

	for _, entry := range history {
		if entry.IsCorrect {
			continue
		}
		report.TotalMistakes++

		if q, ok := byID[entry.QuestionID]; ok {
			report.ByCategory[CategoryLabel(q.Category)]++
			report.ByDifficulty[NormalizeDifficulty(q.Difficulty)]++
		}
		if entry.MistakeType.Valid() {
			report.ByType[entry.MistakeType]++
		}
	}

	for category, count := range report.ByCategory {
		report.TopProblemCategories = append(report.TopProblemCategories, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(report.TopProblemCategories, func(i, j int) bool {
		a, b := report.TopProblemCategories[i], report.TopProblemCategories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	if len(report.TopProblemCategories) > topProblemCategoryLimit {
		report.TopProblemCategories = report.TopProblemCategories[:topProblemCategoryLimit]
	}

	for t, count := range report.ByType {
		trend := MistakeTrend{Type: t, Count: count}
		if report.TotalMistakes > 0 {
			trend.Percentage = Percentage(count, report.TotalMistakes)
		}
		report.MistakeTrend = append(report.MistakeTrend, trend)
	}
	sort.Slice(report.MistakeTrend, func(i, j int) bool {
		a, b := report.MistakeTrend[i], report.MistakeTrend[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})

	return report
}

// GenerateRemediationPlan derives practice priorities for the report's top problem
// categories from the user's per-question history.
//
// FocusTopics carries the category label of the lowest-accuracy entries, as the
// history has no topic field of its own.
func GenerateRemediationPlan(report PatternReport, histories []UserHistory) RemediationPlan {
	plan := RemediationPlan{Areas: []RemediationArea{}, MistakeFocus: defaultMistakeFocus}

	totalSessions := 0
	for _, problem := range report.TopProblemCategories {
		var entries []UserHistory
		for _, h := range histories {
			if CategoryLabel(h.Category) == problem.Category && h.TotalAttempts > 0 {
				entries = append(entries, h)
			}
		}

		var accuracy float64
		if len(entries) > 0 {
			var sum float64
			for _, h := range entries {
				sum += h.Accuracy()
			}
			accuracy = sum / float64(len(entries))
		}

		priority := 1 - accuracy
		area := RemediationArea{
			Category:            problem.Category,
			AverageAccuracy:     accuracy,
			Priority:            priority,
			RecommendedSessions: recommendedSessions(priority),
			FocusTopics:         focusTopics(entries),
		}
		totalSessions += area.RecommendedSessions
		plan.Areas = append(plan.Areas, area)
	}

	sort.SliceStable(plan.Areas, func(i, j int) bool {
		return plan.Areas[i].Priority > plan.Areas[j].Priority
	})

	if len(report.MistakeTrend) > 0 {
		if advice, ok := mistakeFocusAdvice[report.MistakeTrend[0].Type]; ok {
			plan.MistakeFocus = advice
		}
	}

	plan.EstimatedTimeToMastery = int(math.Ceil(float64(totalSessions) * 0.5))

	return plan
}

// CalculateMistakeFrequency returns the mistake rate of every attempted question,
// highest first.
func CalculateMistakeFrequency(histories []UserHistory) []MistakeFrequency {
	out := []MistakeFrequency{}
	for _, h := range histories {
		if h.TotalAttempts <= 0 {
			continue
		}
		rate := int(math.Round((1 - h.Accuracy()) * 100))
		out = append(out, MistakeFrequency{QuestionID: h.QuestionID, MistakeRate: clamp(rate, 0, 100)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MistakeRate > out[j].MistakeRate
	})

	return out
}

// IdentifySystematicErrors reports chosen/correct option pairs that recur at least
// SystematicErrorThreshold times among wrong answers. Entries whose question or chosen
// option cannot be resolved are skipped.
func IdentifySystematicErrors(history []HistoryEntry, questions []Question) []SystematicError {
	byID := indexQuestions(questions)

	counts := map[string]*SystematicError{}
	for _, entry := range history {
		if entry.IsCorrect {
			continue
		}
		q, ok := byID[entry.QuestionID]
		if !ok {
			continue
		}
		chosen := optionIndex(q.Options, entry.UserAnswer)
		correct := correctIndex(q.Options)
		if chosen < 0 || correct < 0 {
			continue
		}

		key := fmt.Sprintf("option_%d_correct_%d", chosen, correct)
		if se, ok := counts[key]; ok {
			se.Count++
			continue
		}
		counts[key] = &SystematicError{Pattern: key, ChosenIndex: chosen, CorrectIndex: correct, Count: 1}
	}

	out := []SystematicError{}
	for _, se := range counts {
		if se.Count >= SystematicErrorThreshold {
			out = append(out, *se)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})

	return out
}

// recommendedSessions is ceil(priority*10). The product is rounded to six decimals first
// so 1-0.7 does not turn into four sessions.
func recommendedSessions(priority float64) int {
	scaled := math.Round(priority*10*1e6) / 1e6
	return int(math.Ceil(scaled))
}

func focusTopics(entries []UserHistory) []string {
	sorted := append([]UserHistory(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Accuracy() < sorted[j].Accuracy()
	})
	if len(sorted) > focusTopicLimit {
		sorted = sorted[:focusTopicLimit]
	}

	topics := make([]string, 0, len(sorted))
	for _, h := range sorted {
		topics = append(topics, CategoryLabel(h.Category))
	}
	return topics
}

func indexQuestions(questions []Question) map[string]Question {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

func optionIndex(options []Option, text string) int {
	for i, o := range options {
		if o.Text == text {
			return i
		}
	}
	return -1
}

func correctIndex(options []Option) int {
	for i, o := range options {
		if o.IsCorrect {
			return i
		}
	}
	return -1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
