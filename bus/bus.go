// Package bus provides an event distribution system for the procedure
// engine. It lets components publish and subscribe to scheduler events,
// decoupling the execution engine from observers such as loggers, the
// otelx tracer, and external consumers.
package bus

import "github.com/ronbb/donut/events"

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event events.Event)

	// Subscribe registers a subscriber for a specific run.
	// Returns a Subscription that must be closed when done.
	Subscribe(runID string) Subscription

	// SubscribeAll registers a subscriber that receives events from all runs.
	// Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan events.Event

	// Close unsubscribes and releases resources.
	Close() error
}
