package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// HandlerFunc reacts to one decoded event.
type HandlerFunc func(ctx context.Context, event *Event) error

// Consumer dispatches events from a topic to handlers registered per event type.
type Consumer struct {
	router *message.Router
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

func NewConsumer(subscriber message.Subscriber, topic string, logger *slog.Logger) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	c := &Consumer{
		router:   router,
		logger:   logger,
		handlers: make(map[string][]HandlerFunc),
	}
	router.AddNoPublisherHandler("quiz-session-events", topic, subscriber, c.dispatch)

	return c, nil
}

// Handle registers fn for eventType. Register handlers before Run.
func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], fn)
}

// Run blocks until ctx is cancelled or the router is closed.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once the consumer is subscribed.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

func (c *Consumer) Close() error {
	return c.router.Close()
}

func (c *Consumer) dispatch(msg *message.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Malformed messages are acked and dropped so they do not block the topic.
		c.logger.Error("Dropping undecodable event", "message_uuid", msg.UUID, "error", err)
		return nil
	}

	c.mu.RLock()
	handlers := c.handlers[event.Type]
	c.mu.RUnlock()

	for _, h := range handlers {
		if err := h(msg.Context(), &event); err != nil {
			return fmt.Errorf("handler for %s failed: %w", event.Type, err)
		}
	}
	return nil
}
