package shared

import "context"

// EventHandler reacts to catalog change events after the change is stored.
// A handler error is logged by the bus and never undoes the change.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the events the handler wants; empty means all of them
	EventTypes() []string
}

// EventPublisher is what repositories and services hand their events to
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
