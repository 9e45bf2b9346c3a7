// Package notify renders notification messages and delivers them over email
// and web push.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// EmailMessage is a rendered email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers rendered emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// PushMessage is the JSON document the service worker displays.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// PushOutcome classifies a push delivery attempt.
type PushOutcome int

const (
	PushDelivered PushOutcome = iota
	PushFailed
	// PushGone means the endpoint no longer exists and the subscription
	// should be removed.
	PushGone
)

func (o PushOutcome) String() string {
	switch o {
	case PushDelivered:
		return "delivered"
	case PushGone:
		return "gone"
	default:
		return "failed"
	}
}

// PushSender delivers one message to one subscription.
type PushSender interface {
	Send(ctx context.Context, sub domain.PushSubscription, msg PushMessage) (PushOutcome, error)
}

// DeliveryError describes a failed notification. It is logged, never
// returned to the caller of a ticket operation.
type DeliveryError struct {
	Channel   domain.NotificationChannel
	Recipient string
	Template  domain.TemplateKind
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s %s to %s: %v", e.Channel, e.Template, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// LogEmailSender logs instead of sending. It is used when no email provider
// is configured.
type LogEmailSender struct {
	Logger *zap.Logger
}

// Send implements EmailSender.
func (s LogEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if s.Logger != nil {
		s.Logger.Info("email not sent, provider disabled",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
	}
	return nil
}

// LogPushSender logs instead of sending. It is used when VAPID keys are
// missing.
type LogPushSender struct {
	Logger *zap.Logger
}

// Send implements PushSender.
func (s LogPushSender) Send(_ context.Context, sub domain.PushSubscription, msg PushMessage) (PushOutcome, error) {
	if s.Logger != nil {
		s.Logger.Info("push not sent, provider disabled",
			zap.String("user_id", sub.UserID),
			zap.String("title", msg.Title))
	}
	return PushDelivered, nil
}
