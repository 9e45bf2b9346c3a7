// Package worker runs background notification delivery.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/events"
	"github.com/spec-kit/facility-desk/internal/service"
)

// NotificationWorker drives the asynchronous dispatcher that delivers
// notification events.
type NotificationWorker struct {
	dispatcher *events.AsyncDispatcher
	service    *service.NotificationService
	logger     *zap.Logger
}

// NewNotificationWorker pairs the delivery handlers with their dispatcher.
func NewNotificationWorker(dispatcher *events.AsyncDispatcher, notificationService *service.NotificationService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{dispatcher: dispatcher, service: notificationService, logger: logger}
}

// Start registers notification handlers and launches the worker pool.
func (w *NotificationWorker) Start() {
	if w == nil || w.dispatcher == nil {
		return
	}
	if w.service != nil {
		w.service.RegisterHandlers()
	}
	w.dispatcher.Start()
	w.logger.Info("notification worker started")
}

// Stop drains queued events until ctx expires.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	if w == nil || w.dispatcher == nil {
		return nil
	}
	err := w.dispatcher.Close(ctx)
	if err != nil {
		w.logger.Warn("notification queue not fully drained", zap.Error(err))
	} else {
		w.logger.Info("notification worker stopped")
	}
	return err
}
