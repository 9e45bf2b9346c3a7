package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, events ...domain.NotificationEvent) error
	Subscribe(channel domain.NotificationChannel, handler Handler)
}

// registry keeps handlers per channel.
type registry struct {
	mu        sync.RWMutex
	listeners map[domain.NotificationChannel][]Handler
}

// Subscribe registers a handler for the given channel.
func (r *registry) Subscribe(channel domain.NotificationChannel, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listeners == nil {
		r.listeners = make(map[domain.NotificationChannel][]Handler)
	}
	r.listeners[channel] = append(r.listeners[channel], handler)
}

func (r *registry) handlers(channel domain.NotificationChannel) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler{}, r.listeners[channel]...)
}

// invoke runs handler, converting a panic into an error.
func invoke(ctx context.Context, handler Handler, event domain.NotificationEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

func withID(event domain.NotificationEvent) domain.NotificationEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return event
}

func eventFields(event domain.NotificationEvent) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("channel", string(event.Channel)),
		zap.String("recipient", event.Recipient),
		zap.String("template", string(event.Template)),
		zap.String("ticket_id", event.Payload.TicketID),
	}
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	registry
	logger *zap.Logger
}

// NewInMemoryDispatcher creates a dispatcher that delivers on the caller's
// goroutine. Handler errors are logged and never returned.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{logger: logger}
}

// Publish synchronously invokes handlers for each event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, events ...domain.NotificationEvent) error {
	for _, event := range events {
		event = withID(event)
		for _, handler := range d.handlers(event.Channel) {
			if err := invoke(ctx, handler, event); err != nil {
				d.logger.Warn("notification delivery failed", append(eventFields(event), zap.Error(err))...)
			}
		}
	}
	return nil
}
