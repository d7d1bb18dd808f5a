package events

import "context"

// EventPublisher is the interface for publishing action-completed events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event *ActionCompletedEvent) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, event *ActionCompletedEvent) error

// PublishCompleted calls f.
func (f PublisherFunc) PublishCompleted(ctx context.Context, event *ActionCompletedEvent) error {
	return f(ctx, event)
}

// Discard drops every event. It stands in when no transport is configured, e.g. under
// Lambda hosting without NATS.
var Discard EventPublisher = PublisherFunc(func(context.Context, *ActionCompletedEvent) error { return nil })
