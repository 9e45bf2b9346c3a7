package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-desk/internal/api/dto"
	"github.com/spec-kit/facility-desk/internal/service"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// PushHandler manages browser push registrations.
type PushHandler struct {
	service        *service.PushService
	vapidPublicKey string
}

// NewPushHandler constructs handler. vapidPublicKey may be empty when push is
// disabled.
func NewPushHandler(pushService *service.PushService, vapidPublicKey string) *PushHandler {
	return &PushHandler{service: pushService, vapidPublicKey: vapidPublicKey}
}

// PublicKey GET /push/vapid-public-key.
func (h *PushHandler) PublicKey(c *fiber.Ctx) error {
	if h.vapidPublicKey == "" {
		return apperrors.NewNotFound("vapid public key", nil)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"public_key": h.vapidPublicKey}})
}

// Subscribe POST /push/subscriptions.
func (h *PushHandler) Subscribe(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PushSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, err := h.service.Subscribe(c.UserContext(), principal.Actor, service.PushSubscriptionInput{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":         sub.ID,
		"endpoint":   sub.Endpoint,
		"created_at": sub.CreatedAt,
	}})
}

// Unsubscribe DELETE /push/subscriptions.
func (h *PushHandler) Unsubscribe(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PushUnsubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.Unsubscribe(c.UserContext(), principal.Actor, req.Endpoint); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
