// Package events publishes domain events after a mutation has committed.
//
// Publishing is fire-and-forget from the caller's point of view: the write
// already happened, so a broken event bus is logged and never turned into a
// failed request.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	SnippetDeleted = "snippet.deleted"
	UserSynced     = "user.synced"
	UserUpgraded   = "user.upgraded"
)

// Event is a small, JSON-serialisable notification.
type Event struct {
	Type       string            `json:"type"`
	Subject    string            `json:"subject"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// New stamps an event with the current time.
func New(eventType, subject string, data map[string]string) Event {
	return Event{Type: eventType, Subject: subject, Data: data, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the log. Used when no Redis is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("event",
		slog.String("type", e.Type),
		slog.String("subject", e.Subject),
		slog.Any("data", e.Data),
	)
	return nil
}

// Emit publishes e and logs (instead of returning) any failure.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warn("failed to publish event",
			slog.String("type", e.Type),
			slog.String("subject", e.Subject),
			slog.String("error", err.Error()),
		)
	}
}
