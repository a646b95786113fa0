// Package eventbus carries conversation and generation lifecycle events from
// the services to in-process or remote listeners.
package eventbus

import (
	"context"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
)

// Event is anything published on the bus.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events. key is the session the event belongs to.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives a pointer to the decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventSubscriber routes delivered events to handlers. Handlers must be
// registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
