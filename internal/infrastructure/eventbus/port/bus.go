package port

import "context"

// Event is an outbound domain event: a stable name plus an opaque
// payload struct owned by the emitting package.
type Event struct {
	Name    string
	Payload any
}

// Handler consumes one event. Handlers are best-effort subscribers:
// an error or panic is logged by the bus and never reaches the emitter.
type Handler func(ctx context.Context, e Event)

// Bus fans events out to independent listeners. Publish must never
// block on or fail because of a subscriber.
type Bus interface {
	// Subscribe registers h for every event published under name.
	Subscribe(name string, h Handler)

	// Publish delivers e to all subscribers of e.Name.
	Publish(ctx context.Context, e Event)

	// Close stops delivery and waits for in-flight handlers.
	Close() error
}
