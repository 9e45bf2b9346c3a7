package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/repository"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// PushSubscriptionInput is a browser PushSubscription as sent by the portal.
type PushSubscriptionInput struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// PushService manages browser push registrations.
type PushService struct {
	subs   repository.PushSubscriptionRepository
	users  repository.UserRepository
	logger *zap.Logger
}

// NewPushService builds the service.
func NewPushService(subs repository.PushSubscriptionRepository, users repository.UserRepository, logger *zap.Logger) *PushService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushService{subs: subs, users: users, logger: logger}
}

// Subscribe registers input for the actor. Re-registering an endpoint moves it
// to the actor.
func (s *PushService) Subscribe(ctx context.Context, actor domain.Actor, input PushSubscriptionInput) (*domain.PushSubscription, error) {
	input.Endpoint = strings.TrimSpace(input.Endpoint)
	input.P256dh = strings.TrimSpace(input.P256dh)
	input.Auth = strings.TrimSpace(input.Auth)

	fields := map[string]string{}
	if u, err := url.Parse(input.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		fields["endpoint"] = "must be an https url"
	}
	if input.P256dh == "" {
		fields["p256dh"] = "is required"
	}
	if input.Auth == "" {
		fields["auth"] = "is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid push subscription", map[string]any{"fields": fields})
	}

	if _, err := s.users.GetByID(ctx, actor.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": actor.ID})
		}
		return nil, apperrors.NewInternalError(err)
	}

	sub := &domain.PushSubscription{
		UserID:   actor.ID,
		Endpoint: input.Endpoint,
		P256dh:   input.P256dh,
		Auth:     input.Auth,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("push subscription registered", zap.String("user_id", actor.ID))
	return sub, nil
}

// Unsubscribe removes endpoint if it belongs to the actor.
func (s *PushService) Unsubscribe(ctx context.Context, actor domain.Actor, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return apperrors.NewValidationError("endpoint is required", nil)
	}
	subs, err := s.subs.ListByUser(ctx, actor.ID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	for _, sub := range subs {
		if sub.Endpoint == endpoint {
			if err := s.subs.DeleteByEndpoint(ctx, endpoint); err != nil {
				return apperrors.NewInternalError(err)
			}
			return nil
		}
	}
	return apperrors.NewNotFound("push_subscription", nil)
}
