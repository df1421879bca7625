package shared

import "context"

// EventHandler reacts to published events. Sync services subscribe handlers for
// stock changes and the Kafka forwarder subscribes for outbound sync events.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants when subscribed without
	// explicit types.
	EventTypes() []string
}

// EventPublisher is what sync services depend on to announce changes
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher with subscription management and a lifecycle
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
