package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes a published message.
type Handler func(ctx context.Context, routingKey string, payload []byte) error

// InProcessBus is an in-memory event bus for single-binary deployments.
// Messages are delivered synchronously to every handler subscribed to the
// routing key, or to "#" for all keys.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewInProcessBus creates an empty in-process bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a routing key. The key "#" receives
// every message.
func (b *InProcessBus) Subscribe(routingKey string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], handler)
}

// Publish dispatches synchronously. Handler errors are logged and do not
// fail the publish; local consumers are observers, not participants.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[routingKey])+len(b.handlers["#"]))
	handlers = append(handlers, b.handlers[routingKey]...)
	handlers = append(handlers, b.handlers["#"]...)
	b.mu.RUnlock()

	start := time.Now()
	for _, handler := range handlers {
		if err := handler(ctx, routingKey, payload); err != nil {
			b.logger.Error("event handler failed",
				"routing_key", routingKey,
				"error", err,
			)
		}
	}

	b.logger.Debug("event dispatched",
		"routing_key", routingKey,
		"handlers", len(handlers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close is a no-op for the in-process bus.
func (b *InProcessBus) Close() error {
	return nil
}
