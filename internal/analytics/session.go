package analytics

import (
	"math"
	"sort"
	"strings"
)

const (
	strongAreaThreshold = 0.70
	weakAreaThreshold   = 0.50
)

type tally map[string]*Performance

func (t tally) add(key string, correct bool) {
	p, ok := t[key]
	if !ok {
		p = &Performance{}
		t[key] = p
	}
	p.Total++
	if correct {
		p.Correct++
	}
}

func (t tally) finalize() map[string]Performance {
	out := make(map[string]Performance, len(t))
	for key, p := range t {
		out[key] = Performance{
			Correct:    p.Correct,
			Total:      p.Total,
			Percentage: Percentage(p.Correct, p.Total),
		}
	}
	return out
}

// GenerateAnalytics computes the performance breakdowns of a session. Questions without
// an answer count toward the bucket totals only.
func GenerateAnalytics(session Session) Summary {
	answers := indexAnswers(session.Answers)

	categories := tally{}
	topics := tally{}
	difficulties := tally{}

	for _, q := range session.Questions {
		answer, answered := answers[q.ID]
		correct := answered && answer.IsCorrect

		categories.add(CategoryLabel(q.Category), correct)
		difficulties.add(NormalizeDifficulty(q.Difficulty), correct)
		if answered && answer.TopicName != "" {
			topics.add(answer.TopicName, correct)
		}
	}

	summary := Summary{
		CategoryPerformance:   categories.finalize(),
		TopicPerformance:      topics.finalize(),
		DifficultyPerformance: difficulties.finalize(),
	}

	summary.StrongAreas = selectLabels(summary.CategoryPerformance, func(ratio float64) bool {
		return ratio >= strongAreaThreshold
	})
	summary.WeakAreas = selectLabels(summary.CategoryPerformance, isWeak)
	summary.WeakTopics = selectLabels(summary.TopicPerformance, isWeak)
	summary.RecommendedTopics = append([]string{}, summary.WeakTopics...)

	if len(session.Answers) > 0 {
		var spent int64
		for _, a := range session.Answers {
			spent += a.TimeSpent
		}
		summary.AverageTimePerQuestion = float64(spent) / float64(len(session.Answers))
	}

	return summary
}

// CalculateScore scores a session against its question list.
func CalculateScore(session Session) Score {
	answers := indexAnswers(session.Answers)

	score := Score{Total: len(session.Questions)}
	for _, q := range session.Questions {
		if a, ok := answers[q.ID]; ok && a.IsCorrect {
			score.Correct++
		}
	}
	score.Incorrect = score.Total - score.Correct
	score.Percentage = Percentage(score.Correct, score.Total)

	return score
}

// EvaluateAnswer reports whether userAnswer matches the option flagged correct. Both
// sides are trimmed; the comparison is case-sensitive.
func EvaluateAnswer(options []Option, userAnswer string) bool {
	correct, ok := CorrectAnswer(options)
	if !ok {
		return false
	}
	return strings.TrimSpace(userAnswer) == strings.TrimSpace(correct)
}

// CorrectAnswer returns the text of the first option flagged correct.
func CorrectAnswer(options []Option) (string, bool) {
	for _, o := range options {
		if o.IsCorrect {
			return o.Text, true
		}
	}
	return "", false
}

// NormalizeDifficulty lower-cases a difficulty label and maps anything unknown to
// intermediate.
func NormalizeDifficulty(difficulty string) string {
	switch d := strings.ToLower(difficulty); d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d
	default:
		return DifficultyIntermediate
	}
}

// CategoryLabel substitutes the uncategorized label for an empty category. Labels are
// otherwise kept verbatim, so "Math" and "math " are different buckets.
func CategoryLabel(category string) string {
	if category == "" {
		return UncategorizedLabel
	}
	return category
}

// Percentage returns round(correct/total*100), or 0 for an empty bucket.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// isWeak treats a bucket at exactly half as weak, so a 1 of 2 category is flagged.
func isWeak(ratio float64) bool {
	return ratio <= weakAreaThreshold
}

// indexAnswers keys answers by question ID; the first answer for a question wins.
func indexAnswers(answers []Answer) map[string]Answer {
	index := make(map[string]Answer, len(answers))
	for _, a := range answers {
		if _, seen := index[a.QuestionID]; !seen {
			index[a.QuestionID] = a
		}
	}
	return index
}

func selectLabels(perf map[string]Performance, keep func(ratio float64) bool) []string {
	labels := []string{}
	for label, p := range perf {
		if p.Total == 0 {
			continue
		}
		if keep(float64(p.Correct) / float64(p.Total)) {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}
