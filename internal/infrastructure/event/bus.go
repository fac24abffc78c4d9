package event

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// BusStats is a snapshot of bus activity
type BusStats struct {
	Published       int64 `json:"published"`
	HandlerFailures int64 `json:"handler_failures"`
}

// InMemoryEventBus delivers catalog events to subscribers synchronously in
// the publishing goroutine. A failing or panicking handler is logged and
// the remaining handlers still run.
type InMemoryEventBus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	byType map[string][]shared.EventHandler
	all    []shared.EventHandler

	published atomic.Int64
	failures  atomic.Int64
}

func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryEventBus{
		logger: log.Named("event_bus"),
		byType: make(map[string][]shared.EventHandler),
	}
}

// Subscribe registers handler for eventTypes, falling back to the handler's
// own EventTypes. With neither it receives every event. Subscribing the
// same handler twice for a type has no effect.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	if len(eventTypes) == 0 {
		b.all = addOnce(b.all, handler)
	}
	for _, t := range eventTypes {
		b.byType[t] = addOnce(b.byType[t], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

func addOnce(handlers []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	if slices.Contains(handlers, h) {
		return handlers
	}
	return append(handlers, h)
}

// handlersFor returns the type's handlers followed by catch-all ones, each once
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := slices.Clone(b.byType[eventType])
	for _, h := range b.all {
		out = addOnce(out, h)
	}
	return out
}

// Publish delivers events in order. It always returns nil; handler
// failures are counted and logged instead.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	log := logger.Or(ctx, b.logger)
	for _, ev := range events {
		if ev == nil {
			continue
		}
		b.published.Add(1)
		for _, h := range b.handlersFor(ev.EventType()) {
			if err := deliver(ctx, h, ev); err != nil {
				b.failures.Add(1)
				log.Error("event handler failed",
					zap.String("event_type", ev.EventType()),
					zap.String("event_id", ev.EventID().String()),
					zap.String("aggregate_id", ev.AggregateID()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func deliver(ctx context.Context, h shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

// Start logs the subscriptions made during wiring
func (b *InMemoryEventBus) Start(context.Context) error {
	b.mu.RLock()
	types := len(b.byType)
	b.mu.RUnlock()
	b.logger.Info("event bus started", zap.Int("event_types", types))
	return nil
}

// Stop logs lifetime totals. Delivery is synchronous, nothing is pending.
func (b *InMemoryEventBus) Stop(context.Context) error {
	s := b.Stats()
	b.logger.Info("event bus stopped",
		zap.Int64("published", s.Published),
		zap.Int64("handler_failures", s.HandlerFailures),
	)
	return nil
}

func (b *InMemoryEventBus) Stats() BusStats {
	return BusStats{Published: b.published.Load(), HandlerFailures: b.failures.Load()}
}

var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
