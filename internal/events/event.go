package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
)

const (
	EventSource  = "quiz-analytics-service"
	EventVersion = "1.0"

	// TopicSessionEvents carries every session lifecycle event.
	TopicSessionEvents = "quiz.sessions"
)

const (
	EventSessionStarted    = "quiz.session_started"
	EventSessionCompleted  = "quiz.session_completed"
	EventProctoringFlagged = "quiz.proctoring_flagged"
)

// Event is the envelope published on the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType string, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        watermill.NewUUID(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}, nil
}

// DecodeData unmarshals the payload into dest.
func (e *Event) DecodeData(dest interface{}) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type SessionStartedData struct {
	SessionID     uint      `json:"session_id"`
	UserID        string    `json:"user_id"`
	QuestionCount int       `json:"question_count"`
	StartedAt     time.Time `json:"started_at"`
}

type SessionCompletedData struct {
	SessionID   uint            `json:"session_id"`
	UserID      string          `json:"user_id"`
	Score       analytics.Score `json:"score"`
	StrongAreas []string        `json:"strong_areas"`
	WeakAreas   []string        `json:"weak_areas"`
	Flagged     bool            `json:"flagged"`
	CompletedAt time.Time       `json:"completed_at"`
}

type ProctoringFlaggedData struct {
	SessionID uint           `json:"session_id"`
	UserID    string         `json:"user_id"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
}

// EventPublisher publishes session events.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
