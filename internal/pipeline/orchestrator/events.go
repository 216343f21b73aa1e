package orchestrator

import (
	"context"
	"time"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/kafka"
)

// Event types on the run audit stream.
const (
	EventRunStarted     = "run_started"
	EventStageCompleted = "stage_completed"
	EventRunCompleted   = "run_completed"
)

// RunEvent is one entry on the audit stream. Events are keyed by run ID so
// a single run's events land on one partition in order.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// EventPublisher pushes run events to the audit stream. Publishing is
// best-effort; failures never affect the run outcome.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent) error
}

// NoopEvents discards all events.
type NoopEvents struct{}

func (NoopEvents) PublishRunEvent(context.Context, RunEvent) error { return nil }

// KafkaEvents publishes run events through a Kafka producer.
type KafkaEvents struct {
	producer *kafka.Producer
}

// NewKafkaEvents wraps an existing producer.
func NewKafkaEvents(producer *kafka.Producer) *KafkaEvents {
	return &KafkaEvents{producer: producer}
}

func (k *KafkaEvents) PublishRunEvent(ctx context.Context, event RunEvent) error {
	return k.producer.Publish(ctx, kafka.Event{Key: event.RunID, Value: event})
}
