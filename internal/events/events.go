// Package events publishes job and schedule lifecycle transitions.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Subjects
const (
	SubjectJob      = "job"
	SubjectSchedule = "schedule"
)

// Event is one lifecycle transition
type Event struct {
	Subject    string    `json:"subject"`
	ID         string    `json:"id"`
	Kind       string    `json:"kind,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey returns "<subject>.<status>" in lower case
func (e Event) RoutingKey() string {
	return e.Subject + "." + strings.ToLower(e.Status)
}

// Publisher delivers lifecycle events. Implementations must not block the
// caller for longer than their own retry budget.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// ErrBrokerDisconnected is reported by Check when the broker connection is gone
var ErrBrokerDisconnected = errors.New("event broker is disconnected")

// Broker is the part of the RabbitMQ client used for publishing
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
	IsConnected() bool
}

// AMQPPublisher publishes events as JSON to a RabbitMQ exchange
type AMQPPublisher struct {
	broker Broker
	logger *slog.Logger
}

// NewAMQPPublisher creates a publisher on top of a RabbitMQ client
func NewAMQPPublisher(broker Broker, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{broker: broker, logger: logger}
}

// Publish implements Publisher
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.broker.PublishWithRetry(ctx, e.RoutingKey(), body, "application/json"); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			slog.String("routing_key", e.RoutingKey()),
			slog.String("id", e.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Check reports whether events can currently be delivered
func (p *AMQPPublisher) Check(context.Context) error {
	if !p.broker.IsConnected() {
		return ErrBrokerDisconnected
	}
	return nil
}
