package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/events"
	"github.com/spec-kit/facility-desk/internal/notify"
	"github.com/spec-kit/facility-desk/internal/observability"
	"github.com/spec-kit/facility-desk/internal/repository"
)

// NotificationService delivers notification events over email and web push.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	areas      repository.AreaRepository
	pushSubs   repository.PushSubscriptionRepository
	renderer   *notify.Renderer
	email      notify.EmailSender
	push       notify.PushSender
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies wires the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	UserRepo   repository.UserRepository
	AreaRepo   repository.AreaRepository
	PushRepo   repository.PushSubscriptionRepository
	Renderer   *notify.Renderer
	Email      notify.EmailSender
	Push       notify.PushSender
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	email := deps.Email
	if email == nil {
		email = notify.LogEmailSender{Logger: logger}
	}
	push := deps.Push
	if push == nil {
		push = notify.LogPushSender{Logger: logger}
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		users:      deps.UserRepo,
		areas:      deps.AreaRepo,
		pushSubs:   deps.PushRepo,
		renderer:   deps.Renderer,
		email:      email,
		push:       push,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes the delivery handlers to the dispatcher.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(domain.ChannelEmail, n.HandleEmail)
	n.dispatcher.Subscribe(domain.ChannelPush, n.HandlePush)
}

// HandleEmail renders and sends one email event.
func (n *NotificationService) HandleEmail(ctx context.Context, event domain.NotificationEvent) error {
	recipient, err := n.users.GetByID(ctx, event.Recipient)
	if err != nil {
		n.metrics.RecordNotification(string(domain.ChannelEmail), "failed")
		return deliveryError(event, fmt.Errorf("load recipient: %w", err))
	}

	data := n.templateData(ctx, event, recipient)
	subject, html, err := n.renderer.Email(event.Template, data)
	if err != nil {
		n.metrics.RecordNotification(string(domain.ChannelEmail), "failed")
		return deliveryError(event, err)
	}

	if err := n.email.Send(ctx, notify.EmailMessage{To: recipient.Email, Subject: subject, HTML: html}); err != nil {
		n.metrics.RecordNotification(string(domain.ChannelEmail), "failed")
		return deliveryError(event, err)
	}

	n.metrics.RecordNotification(string(domain.ChannelEmail), "delivered")
	n.logger.Debug("email delivered",
		zap.String("event_id", event.ID),
		zap.String("template", string(event.Template)),
		zap.String("recipient", event.Recipient))
	return nil
}

// HandlePush sends one push event to every subscription of the recipient.
// Subscriptions whose endpoint is gone are removed.
func (n *NotificationService) HandlePush(ctx context.Context, event domain.NotificationEvent) error {
	subs, err := n.pushSubs.ListByUser(ctx, event.Recipient)
	if err != nil {
		n.metrics.RecordNotification(string(domain.ChannelPush), "failed")
		return deliveryError(event, fmt.Errorf("list subscriptions: %w", err))
	}
	if len(subs) == 0 {
		n.metrics.RecordNotification(string(domain.ChannelPush), "no_subscription")
		return nil
	}

	msg, err := n.renderer.Push(event.Template, n.templateData(ctx, event, nil))
	if err != nil {
		n.metrics.RecordNotification(string(domain.ChannelPush), "failed")
		return deliveryError(event, err)
	}

	var errs []error
	for _, sub := range subs {
		outcome, sendErr := n.push.Send(ctx, sub, msg)
		n.metrics.RecordNotification(string(domain.ChannelPush), outcome.String())
		switch outcome {
		case notify.PushGone:
			if err := n.pushSubs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Warn("remove expired push subscription failed",
					zap.String("user_id", sub.UserID), zap.Error(err))
				continue
			}
			n.logger.Info("removed expired push subscription", zap.String("user_id", sub.UserID))
		case notify.PushFailed:
			if sendErr == nil {
				sendErr = errors.New("push delivery failed")
			}
			errs = append(errs, sendErr)
		}
	}
	if len(errs) > 0 {
		return deliveryError(event, errors.Join(errs...))
	}
	return nil
}

// templateData resolves display names. Lookups that fail leave the field
// empty; a message with a missing name is better than no message.
func (n *NotificationService) templateData(ctx context.Context, event domain.NotificationEvent, recipient *domain.User) notify.TemplateData {
	data := notify.TemplateData{NotificationPayload: event.Payload}
	if recipient != nil {
		data.RecipientName = recipient.Name
	}
	if event.Payload.RequesterID != "" {
		if recipient != nil && recipient.ID == event.Payload.RequesterID {
			data.RequesterName = recipient.Name
		} else if requester, err := n.users.GetByID(ctx, event.Payload.RequesterID); err == nil {
			data.RequesterName = requester.Name
		}
	}
	if event.Payload.AreaID != "" && n.areas != nil {
		if area, err := n.areas.GetByID(ctx, event.Payload.AreaID); err == nil {
			data.AreaName = area.Name
		}
	}
	return data
}

func deliveryError(event domain.NotificationEvent, err error) error {
	return &notify.DeliveryError{
		Channel:   event.Channel,
		Recipient: event.Recipient,
		Template:  event.Template,
		Err:       err,
	}
}
