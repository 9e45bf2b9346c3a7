package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// VAPIDConfig holds the application server keys.
type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
	TTL        int
}

// WebPushSender delivers encrypted web push messages.
type WebPushSender struct {
	cfg    VAPIDConfig
	client *http.Client
}

// NewWebPushSender builds a sender. A nil client uses http.DefaultClient.
func NewWebPushSender(cfg VAPIDConfig, client *http.Client) *WebPushSender {
	if cfg.TTL <= 0 {
		cfg.TTL = 86400
	}
	return &WebPushSender{cfg: cfg, client: client}
}

// Send implements PushSender. 404 and 410 responses report PushGone.
func (s *WebPushSender) Send(ctx context.Context, sub domain.PushSubscription, msg PushMessage) (PushOutcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return PushFailed, fmt.Errorf("encode push payload: %w", err)
	}

	opts := &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	}
	if s.client != nil {
		opts.HTTPClient = s.client
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{Auth: sub.Auth, P256dh: sub.P256dh},
	}, opts)
	if err != nil {
		return PushFailed, fmt.Errorf("webpush: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return PushGone, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return PushDelivered, nil
	default:
		return PushFailed, fmt.Errorf("webpush: push service responded %d", resp.StatusCode)
	}
}
