package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// AsyncOptions tunes the asynchronous dispatcher.
type AsyncOptions struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
	// OnDrop observes events rejected because the queue was full.
	OnDrop func(domain.NotificationEvent)
}

type queued struct {
	ctx   context.Context
	event domain.NotificationEvent
}

// AsyncDispatcher queues events on a bounded channel drained by a worker
// pool. Publish never blocks; handlers for one event run concurrently and a
// failing or panicking handler does not affect the others.
type AsyncDispatcher struct {
	registry
	logger *zap.Logger
	opts   AsyncOptions
	queue  chan queued

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewAsyncDispatcher builds a dispatcher; call Start before publishing.
func NewAsyncDispatcher(logger *zap.Logger, opts AsyncOptions) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}
	return &AsyncDispatcher{
		logger: logger,
		opts:   opts,
		queue:  make(chan queued, opts.QueueSize),
	}
}

// Start launches the worker pool. It is safe to call more than once.
func (d *AsyncDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Publish enqueues events. Delivery keeps ctx values but not its
// cancellation, since the request that produced the events may end first.
func (d *AsyncDispatcher) Publish(ctx context.Context, events ...domain.NotificationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	deliveryCtx := context.WithoutCancel(ctx)
	var dropped bool
	for _, event := range events {
		event = withID(event)
		select {
		case d.queue <- queued{ctx: deliveryCtx, event: event}:
		default:
			dropped = true
			d.logger.Warn("notification queue full, dropping event", eventFields(event)...)
			if d.opts.OnDrop != nil {
				d.opts.OnDrop(event)
			}
		}
	}
	if dropped {
		return ErrQueueFull
	}
	return nil
}

// Close stops accepting events and waits for queued ones to drain or for ctx
// to end.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("notification queue not drained"), ctx.Err())
	}
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for item := range d.queue {
		d.deliver(item)
	}
}

func (d *AsyncDispatcher) deliver(item queued) {
	handlers := d.handlers(item.event.Channel)
	if len(handlers) == 0 {
		d.logger.Debug("no handler for channel", eventFields(item.event)...)
		return
	}

	ctx, cancel := context.WithTimeout(item.ctx, d.opts.DeliveryTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := invoke(ctx, h, item.event); err != nil {
				d.logger.Warn("notification delivery failed", append(eventFields(item.event), zap.Error(err))...)
			}
		}(handler)
	}
	wg.Wait()
}
