package events

import (
	"context"
	"errors"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// Handler delivers one notification event on one channel.
type Handler func(context.Context, domain.NotificationEvent) error

var (
	// ErrQueueFull is returned by Publish when events had to be dropped.
	ErrQueueFull = errors.New("notification queue full")
	// ErrDispatcherClosed is returned by Publish after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)
