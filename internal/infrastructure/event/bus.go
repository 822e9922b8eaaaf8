package event

import (
	"context"
	"sync"
	"time"

	"github.com/finpilot/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultBufferSize     = 256
	defaultHandlerTimeout = 5 * time.Second
)

// InMemoryEventBus implements shared.EventBus with in-memory pub/sub. Once
// started, events are delivered asynchronously from a buffered queue so that
// publishing never blocks the request path; before Start and after Stop,
// delivery is synchronous.
type InMemoryEventBus struct {
	registry       *HandlerRegistry
	logger         *zap.Logger
	handlerTimeout time.Duration

	mu      sync.RWMutex
	running bool
	queue   chan shared.DomainEvent
	wg      sync.WaitGroup
}

// BusConfig holds event bus tuning parameters
type BusConfig struct {
	BufferSize     int
	HandlerTimeout time.Duration
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, cfg BusConfig) *InMemoryEventBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	return &InMemoryEventBus{
		registry:       NewHandlerRegistry(),
		logger:         logger,
		handlerTimeout: cfg.HandlerTimeout,
		queue:          make(chan shared.DomainEvent, cfg.BufferSize),
	}
}

// Publish hands events to all registered handlers. When the bus is running
// the events are queued for asynchronous delivery; a full queue falls back to
// delivering inline so no event is dropped.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		b.mu.RLock()
		if b.running {
			select {
			case b.queue <- evt:
				b.mu.RUnlock()
				continue
			default:
				b.logger.Warn("event queue full, delivering inline",
					zap.String("event_type", evt.EventType()),
				)
			}
		}
		b.mu.RUnlock()
		b.deliver(evt)
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start launches the asynchronous delivery worker
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.running = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range b.queue {
			b.deliver(evt)
		}
	}()

	b.logger.Info("event bus started")
	return nil
}

// Stop drains the queue and stops the delivery worker
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus stopped")
	return nil
}

// deliver fans an event out to its handlers. Delivery runs detached from the
// publisher's context so a finished request cannot cancel it.
func (b *InMemoryEventBus) deliver(evt shared.DomainEvent) {
	handlers := b.registry.HandlersFor(evt.EventType())

	for _, handler := range handlers {
		ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
		if err := b.dispatchToHandler(ctx, handler, evt); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", evt.EventType()),
				zap.String("event_id", evt.EventID().String()),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", evt.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, evt)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
