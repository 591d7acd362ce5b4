package bus

import (
	"context"
	"log/slog"

	"github.com/ronbb/donut/events"
)

// StoreSubscriber writes events to an EventStore.
// Its Handle method takes one event at a time, so it can consume the
// events of a bus Subscription.
type StoreSubscriber struct {
	store  EventStore
	logger *slog.Logger
}

// NewStoreSubscriber creates a new StoreSubscriber.
func NewStoreSubscriber(store EventStore, logger *slog.Logger) *StoreSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSubscriber{
		store:  store,
		logger: logger,
	}
}

// Handle persists a single event to the store.
func (s *StoreSubscriber) Handle(event events.Event) {
	if err := s.store.Append(context.Background(), event); err != nil {
		s.logger.Error("failed to persist event",
			"run_id", event.RunID,
			"kind", event.Kind,
			"error", err,
		)
	}
}
