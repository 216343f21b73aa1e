// Package notify delivers the single terminal notification of each
// pipeline run. Delivery is fire-and-forget: a failed send is logged and
// never fails the pipeline.
package notify

import "context"

// Priority of a notification.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notifier sends one message to an external channel.
type Notifier interface {
	Send(ctx context.Context, priority Priority, subject, body string) error
}

// Noop discards notifications. Used when no channel is configured.
type Noop struct{}

var _ Notifier = Noop{}

func (Noop) Send(context.Context, Priority, string, string) error { return nil }
