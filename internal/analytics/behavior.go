package analytics

import "time"

// Proctoring event types reported by the quiz client.
const (
	EventTabSwitch      = "tab_switch"
	EventWindowBlur     = "window_blur"
	EventCopyAttempt    = "copy_attempt"
	EventPasteAttempt   = "paste_attempt"
	EventFullscreenExit = "fullscreen_exit"
	EventRightClick     = "right_click"
)

// SuspiciousActivityThreshold is the number of proctoring events at which a session is
// flagged for review.
const SuspiciousActivityThreshold = 5

var knownProctoringEvents = map[string]bool{
	EventTabSwitch:      true,
	EventWindowBlur:     true,
	EventCopyAttempt:    true,
	EventPasteAttempt:   true,
	EventFullscreenExit: true,
	EventRightClick:     true,
}

// IsProctoringEventType reports whether t is a known proctoring event type.
func IsProctoringEventType(t string) bool {
	return knownProctoringEvents[t]
}

type ProctoringEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProctoringSummary struct {
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
	Flagged bool           `json:"flagged"`
}

type TimingSummary struct {
	AverageByDifficulty map[string]float64 `json:"average_by_difficulty"`
	TotalTimeSpent      int64              `json:"total_time_spent"`
	FastestQuestionID   string             `json:"fastest_question_id,omitempty"`
	SlowestQuestionID   string             `json:"slowest_question_id,omitempty"`
}

// SummarizeProctoring counts proctoring events per type. Unknown types still count
// toward the total.
func SummarizeProctoring(events []ProctoringEvent) ProctoringSummary {
	summary := ProctoringSummary{Counts: map[string]int{}}
	for _, e := range events {
		summary.Counts[e.Type]++
		summary.Total++
	}
	summary.Flagged = summary.Total >= SuspiciousActivityThreshold
	return summary
}

// TimingBreakdown averages answer time per difficulty. Answers without tracked time are
// left out of the averages and of the fastest/slowest picks.
func TimingBreakdown(session Session) TimingSummary {
	summary := TimingSummary{AverageByDifficulty: map[string]float64{}}

	sums := map[string]int64{}
	counts := map[string]int{}
	var fastest, slowest *Answer

	for i := range session.Answers {
		a := &session.Answers[i]
		if a.TimeSpent <= 0 {
			continue
		}
		summary.TotalTimeSpent += a.TimeSpent

		d := NormalizeDifficulty(a.Difficulty)
		sums[d] += a.TimeSpent
		counts[d]++

		if fastest == nil || a.TimeSpent < fastest.TimeSpent {
			fastest = a
		}
		if slowest == nil || a.TimeSpent > slowest.TimeSpent {
			slowest = a
		}
	}

	for d, sum := range sums {
		summary.AverageByDifficulty[d] = float64(sum) / float64(counts[d])
	}
	if fastest != nil {
		summary.FastestQuestionID = fastest.QuestionID
		summary.SlowestQuestionID = slowest.QuestionID
	}

	return summary
}
