package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gookitEvent "github.com/gookit/event"

	applogger "github.com/solidifx/solidi-go/pkg/logger"
)

// gookitEventBus implements EventBus using gookit/event as the underlying implementation
type gookitEventBus struct {
	manager     *gookitEvent.Manager
	logger      *applogger.Logger
	subscribers map[string]int
	mu          sync.RWMutex
	lastError   string
	published   atomic.Int64
	closed      bool
}

// NewBus creates an event bus backed by a named gookit manager. Handlers run
// synchronously on the publishing goroutine.
func NewBus(name string, logger *applogger.Logger) EventBus {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &gookitEventBus{
		manager:     gookitEvent.NewManager(name),
		logger:      logger,
		subscribers: make(map[string]int),
	}
}

// Publish publishes an event to the bus
func (b *gookitEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	b.logger.DebugContext(ctx,
		"publishing event",
		slog.String("type", event.Type()),
		slog.String("id", event.ID()))

	err, _ := b.manager.Fire(event.Type(), gookitEvent.M{"payload": event, "ctx": ctx})
	b.published.Add(1)
	if err != nil {
		b.mu.Lock()
		b.lastError = err.Error()
		b.mu.Unlock()

		b.logger.ErrorCtx(ctx,
			"event handler failed",
			err,
			slog.String("type", event.Type()),
			slog.String("id", event.ID()))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe registers a handler for events of a specific type
func (b *gookitEventBus) Subscribe(eventType string, handler EventHandler) (UnsubscribeFunc, error) {
	return b.SubscribeWithPriority(eventType, handler, PriorityNormal)
}

// SubscribeWithPriority registers a handler with a specific priority
func (b *gookitEventBus) SubscribeWithPriority(eventType string, handler EventHandler, priority Priority) (UnsubscribeFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	gookitPriority := gookitEvent.Normal
	switch priority {
	case PriorityHigh:
		gookitPriority = gookitEvent.High
	case PriorityLow:
		gookitPriority = gookitEvent.Low
	}

	// gookit cannot tell two closures from the same literal apart when
	// removing listeners, so unsubscribing only disarms the wrapper.
	var active atomic.Bool
	active.Store(true)

	listener := gookitEvent.ListenerFunc(func(e gookitEvent.Event) error {
		if !active.Load() {
			return nil
		}
		ev, ok := e.Get("payload").(Event)
		if !ok {
			return fmt.Errorf("invalid event payload: %T", e.Get("payload"))
		}
		ctx, ok := e.Get("ctx").(context.Context)
		if !ok {
			ctx = context.Background()
		}
		return handler(ctx, ev)
	})

	b.manager.On(eventType, listener, gookitPriority)
	b.subscribers[eventType]++

	b.logger.Debug("subscribed to event type",
		slog.String("type", eventType),
		slog.Int("priority", int(priority)))

	var once sync.Once
	return func() error {
		once.Do(func() {
			active.Store(false)
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.subscribers[eventType] > 0 {
				b.subscribers[eventType]--
			}
			if b.subscribers[eventType] == 0 {
				delete(b.subscribers, eventType)
			}
		})
		return nil
	}, nil
}

// Close gracefully shuts down the event bus
func (b *gookitEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.subscribers = make(map[string]int)
	b.manager.Clear()
	b.closed = true
	return nil
}

// Health returns the health status of the event bus
func (b *gookitEventBus) Health() Health {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := "healthy"
	message := "Event bus is operating normally"

	if b.closed {
		status = "unhealthy"
		message = "Event bus is closed"
	} else if b.lastError != "" {
		status = "degraded"
		message = "Event bus has recent handler errors"
	}

	total := 0
	for _, n := range b.subscribers {
		total += n
	}

	return Health{
		Status:      status,
		Message:     message,
		Subscribers: total,
		LastError:   b.lastError,
		Metadata: map[string]any{
			"event_types": len(b.subscribers),
			"published":   b.published.Load(),
		},
	}
}

// BaseEvent provides a common implementation of the Event interface
type BaseEvent struct {
	id        string
	eventType string
	timestamp time.Time
	metadata  map[string]any
}

// NewBaseEvent creates a new base event
func NewBaseEvent(eventType string, metadata map[string]any) *BaseEvent {
	return &BaseEvent{
		id:        uuid.New().String(),
		eventType: eventType,
		timestamp: time.Now(),
		metadata:  metadata,
	}
}

func (e *BaseEvent) Type() string         { return e.eventType }
func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }
func (e *BaseEvent) ID() string           { return e.id }

// Metadata returns the event metadata
func (e *BaseEvent) Metadata() map[string]any {
	if e.metadata == nil {
		return make(map[string]any)
	}
	return e.metadata
}

// WithMetadata adds metadata to the event
func (e *BaseEvent) WithMetadata(key string, value any) *BaseEvent {
	if e.metadata == nil {
		e.metadata = make(map[string]any)
	}
	e.metadata[key] = value
	return e
}
