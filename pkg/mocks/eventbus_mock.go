package mocks

import (
	"context"
	"sync"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/eventbus"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock

	mu       sync.Mutex
	handlers map[events.EventType][]eventbus.EventHandler
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

// Handle records the registration and keeps the handler so tests can Deliver
// events to it.
func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	if args.Error(0) == nil {
		m.mu.Lock()
		if m.handlers == nil {
			m.handlers = map[events.EventType][]eventbus.EventHandler{}
		}

		m.handlers[eventType] = append(m.handlers[eventType], handler)
		m.mu.Unlock()
	}

	return args.Error(0)
}

// Deliver hands event to the handlers registered for its type, as a
// subscribed bus would after decoding it.
func (m *MockEventBus) Deliver(ctx context.Context, eventType events.EventType, event any) error {
	m.mu.Lock()
	handlers := m.handlers[eventType]
	m.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
